package core

// RGB is one pixel in source channel order.
type RGB struct {
	R, G, B uint8
}

// White is the unscaled brightness.
var White = RGB{255, 255, 255}

func (c RGB) channel(i int) uint8 {
	switch i {
	case 0:
		return c.R
	case 1:
		return c.G
	default:
		return c.B
	}
}

// ColorOrder maps wire slots to source channels. Each octal digit, most
// significant first, names the channel sent in that slot.
type ColorOrder uint16

const (
	OrderRGB ColorOrder = 0o012
	OrderRBG ColorOrder = 0o021
	OrderGRB ColorOrder = 0o102
	OrderGBR ColorOrder = 0o120
	OrderBRG ColorOrder = 0o201
	OrderBGR ColorOrder = 0o210
)

// ColorOrders lists the orders in their wire enumeration order.
var ColorOrders = []ColorOrder{OrderRGB, OrderRBG, OrderGRB, OrderGBR, OrderBRG, OrderBGR}

// Slot returns the source channel sent in wire slot i (0, 1 or 2).
func (o ColorOrder) Slot(i int) int {
	return int(o>>(3*(2-uint(i)))) & 3
}

func (o ColorOrder) Valid() bool {
	for _, c := range ColorOrders {
		if c == o {
			return true
		}
	}
	return false
}

func (o ColorOrder) String() string {
	if !o.Valid() {
		return "invalid"
	}
	const names = "RGB"
	return string([]byte{names[o.Slot(0)], names[o.Slot(1)], names[o.Slot(2)]})
}

// ParseColorOrder accepts names such as "GRB".
func ParseColorOrder(s string) (ColorOrder, bool) {
	for _, o := range ColorOrders {
		if o.String() == s {
			return o, true
		}
	}
	return 0, false
}

// scale8 returns i * (scale+1) / 256, so a scale of 255 is the identity.
func scale8(i, scale uint8) uint8 {
	return uint8((uint16(i) * (1 + uint16(scale))) >> 8)
}

// qadd8 adds with saturation at 255.
func qadd8(a, b uint8) uint8 {
	s := uint16(a) + uint16(b)
	if s > 255 {
		return 255
	}
	return uint8(s)
}
