package format

// A Colorizer holds the ANSI codes used to color listing output.  A nil
// *Colorizer prints everything uncolored, so callers can pass nil when the
// output is not a terminal.
type Colorizer struct {
	LabelCode []byte
	ValueCode []byte
	DimCode   []byte
	ResetCode []byte
}

// PrintLabel prints b using the label color.
func (c *Colorizer) PrintLabel(p Printer, b []byte) {
	c.print(p, c.labelCode(), b)
}

// PrintValue prints b using the value color.
func (c *Colorizer) PrintValue(p Printer, b []byte) {
	c.print(p, c.valueCode(), b)
}

// PrintDim prints b using the dim color, for secondary detail.
func (c *Colorizer) PrintDim(p Printer, b []byte) {
	c.print(p, c.dimCode(), b)
}

func (c *Colorizer) print(p Printer, code, b []byte) {
	if c != nil {
		p.PrintBytes(code)
	}
	p.PrintBytes(b)
	if c != nil {
		p.PrintBytes(c.ResetCode)
	}
}

func (c *Colorizer) labelCode() []byte {
	if c == nil {
		return nil
	}
	return c.LabelCode
}

func (c *Colorizer) valueCode() []byte {
	if c == nil {
		return nil
	}
	return c.ValueCode
}

func (c *Colorizer) dimCode() []byte {
	if c == nil {
		return nil
	}
	return c.DimCode
}
