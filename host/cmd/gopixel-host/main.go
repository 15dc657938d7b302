package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopixel/core"
	"gopixel/host/config"
	"gopixel/host/mcu"
)

var (
	device     = flag.String("device", "", "Serial device path (overrides the strip file)")
	baud       = flag.Int("baud", 0, "Baud rate for the UART link (ignored for USB CDC)")
	configPath = flag.String("config", "", "JSON strip file; default is one WS2812 strip on GPIO 16")
	oid        = flag.Int("oid", 0, "Strip the commands act on")
	verbose    = flag.Bool("verbose", false, "Print every MCU response")
)

type session struct {
	mcu *mcu.MCU
	cfg *config.Config
}

func main() {
	flag.Parse()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadFile(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	if *device != "" {
		cfg.Device = *device
	}
	if *baud != 0 {
		cfg.Baud = *baud
	}

	m := mcu.NewMCU()
	m.SetOutput(os.Stdout, *verbose)
	fmt.Printf("Connecting to MCU on %s...\n", cfg.Device)
	if err := m.ConnectWithConfig(cfg.SerialConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer m.Close()

	if err := m.RetrieveDictionary(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to retrieve dictionary: %v\n", err)
		os.Exit(1)
	}
	s := &session{mcu: m, cfg: cfg}

	// One-shot mode: gopixel-host fill 255 0 0
	if flag.NArg() > 0 {
		if err := s.run(flag.Args()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		switch parts[0] {
		case "quit", "exit", "q":
			return
		case "help", "?":
			printHelp()
			continue
		}
		if err := s.run(parts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("\nAvailable commands:")
	fmt.Println("  dict              - Print dictionary summary")
	fmt.Println("  configure         - Send the strip file to the MCU")
	fmt.Println("  fill R G B        - Show one colour on the strip")
	fmt.Println("  clear             - Turn the strip off")
	fmt.Println("  rainbow [frames]  - Run a moving rainbow")
	fmt.Println("  get_clock         - Read the MCU clock")
	fmt.Println("  get_uptime        - Read the MCU uptime")
	fmt.Println("  get_config        - Read the MCU configuration state")
	fmt.Println("  debug on|off      - Toggle firmware debug output")
	fmt.Println("  dump              - Print the firmware frame ring")
	fmt.Println("  quit/exit/q       - Exit the program")
	fmt.Println()
}

func (s *session) run(args []string) error {
	switch args[0] {
	case "dict":
		s.mcu.PrintDictionary(os.Stdout)
	case "configure":
		return s.configure()
	case "fill":
		c, err := parseRGB(args[1:])
		if err != nil {
			return err
		}
		return s.fill(c)
	case "clear":
		if err := s.configure(); err != nil {
			return err
		}
		return s.mcu.ClearStrip(uint8(*oid))
	case "rainbow":
		frames := 300
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("frames: %w", err)
			}
			frames = n
		}
		return s.rainbow(frames)
	case "get_clock":
		clock, err := s.mcu.GetClock()
		if err != nil {
			return err
		}
		fmt.Printf("clock=%d\n", clock)
	case "get_uptime":
		up, err := s.mcu.GetUptime()
		if err != nil {
			return err
		}
		freq, _ := s.mcu.GetDictionary().ConfigUint("CLOCK_FREQ")
		if freq == 0 {
			freq = core.ClockFreq
		}
		fmt.Printf("uptime=%d ticks (%v)\n", up, time.Duration(up*uint64(time.Second)/uint64(freq)))
	case "get_config":
		state, err := s.mcu.GetConfig()
		if err != nil {
			return err
		}
		fmt.Printf("is_config=%v crc=%08x is_shutdown=%v move_count=%d\n",
			state.IsConfig, state.CRC, state.IsShutdown, state.MoveCount)
	case "debug":
		on := len(args) > 1 && args[1] == "on"
		return s.mcu.SendCommand("set_debug", on)
	case "dump":
		return s.mcu.SendCommand("dump_frames")
	default:
		return fmt.Errorf("unknown command %q (type 'help' for available commands)", args[0])
	}
	return nil
}

// configure sends the strip file and each strip's scale and tolerance.
func (s *session) configure() error {
	params := make([]mcu.StripParams, len(s.cfg.Strips))
	for i, st := range s.cfg.Strips {
		params[i] = st.Params()
	}
	if err := s.mcu.Configure(params); err != nil {
		return err
	}
	for _, st := range s.cfg.Strips {
		if err := s.mcu.SetScale(st.OID, st.Scale(), st.DitherMode()); err != nil {
			return err
		}
		if st.ToleranceUS != 0 {
			if err := s.mcu.SetTolerance(st.OID, st.Tolerance()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *session) strip() (config.Strip, error) {
	st, ok := s.cfg.Strip(uint8(*oid))
	if !ok {
		return st, fmt.Errorf("no strip with oid %d", *oid)
	}
	return st, nil
}

func (s *session) fill(c core.RGB) error {
	if err := s.configure(); err != nil {
		return err
	}
	st, err := s.strip()
	if err != nil {
		return err
	}
	buf := make([]byte, st.Pixels*3)
	for i := 0; i < len(buf); i += 3 {
		buf[i], buf[i+1], buf[i+2] = c.R, c.G, c.B
	}
	if err := s.mcu.UpdatePixels(st.OID, 0, buf); err != nil {
		return err
	}
	return s.mcu.Show(st.OID)
}

func (s *session) rainbow(frames int) error {
	if err := s.configure(); err != nil {
		return err
	}
	st, err := s.strip()
	if err != nil {
		return err
	}
	buf := make([]byte, st.Pixels*3)
	tick := time.NewTicker(time.Second / 30)
	defer tick.Stop()
	start := time.Now()
	failed := 0
	for f := 0; f < frames; f++ {
		for i := 0; i < st.Pixels; i++ {
			c := hue(uint8(f*4 + i*256/st.Pixels))
			buf[i*3], buf[i*3+1], buf[i*3+2] = c.R, c.G, c.B
		}
		if err := s.mcu.UpdatePixels(st.OID, 0, buf); err != nil {
			return err
		}
		if err := s.mcu.Show(st.OID); err != nil {
			failed++
		}
		<-tick.C
	}
	elapsed := time.Since(start)
	fmt.Printf("%d frames in %v (%.1f fps), %d failed\n",
		frames, elapsed.Round(time.Millisecond), float64(frames)/elapsed.Seconds(), failed)
	return nil
}

func parseRGB(args []string) (core.RGB, error) {
	if len(args) != 3 {
		return core.RGB{}, fmt.Errorf("want R G B, got %d values", len(args))
	}
	var v [3]uint8
	for i, a := range args {
		n, err := strconv.ParseUint(a, 0, 8)
		if err != nil {
			return core.RGB{}, fmt.Errorf("colour %q: %w", a, err)
		}
		v[i] = uint8(n)
	}
	return core.RGB{R: v[0], G: v[1], B: v[2]}, nil
}

// hue maps 0..255 around the colour wheel at full saturation.
func hue(h uint8) core.RGB {
	region := h / 43
	rem := (h - region*43) * 6
	up, down := rem, 255-rem
	switch region {
	case 0:
		return core.RGB{R: 255, G: up}
	case 1:
		return core.RGB{R: down, G: 255}
	case 2:
		return core.RGB{G: 255, B: up}
	case 3:
		return core.RGB{G: down, B: 255}
	case 4:
		return core.RGB{R: up, B: 255}
	default:
		return core.RGB{R: 255, B: down}
	}
}
