package optpath

// Table is a flat, row-per-trial view of the path, suitable for printing or
// JSON encoding. One column per parameter, measure and diagnostic field.
type Table struct {
	Cols []string `json:"cols"`
	Rows [][]any  `json:"rows"`
}

// AsTable renders the path. With transformed true, parameter columns carry
// the values after each parameter's transform; otherwise the raw search
// values. Inactive dependent parameters render as nil.
func (p *Path) AsTable(transformed bool) *Table {
	p.mu.Lock()
	recs := make([]Record, len(p.recs))
	copy(recs, p.recs)
	p.mu.Unlock()

	names := p.space.Names()
	cols := make([]string, 0, len(names)+len(p.measures)+4)
	cols = append(cols, "trial")
	cols = append(cols, names...)
	cols = append(cols, p.measures...)
	cols = append(cols, "exec_time", "error")
	if p.withExtras {
		cols = append(cols, "error_dump")
	}

	rows := make([][]any, 0, len(recs))
	for _, rec := range recs {
		cfg := rec.Config
		if transformed {
			cfg = p.space.Transformed(cfg)
		}
		row := make([]any, 0, len(cols))
		row = append(row, rec.Index)
		for _, name := range names {
			if v, ok := cfg[name]; ok {
				row = append(row, v)
			} else {
				row = append(row, nil)
			}
		}
		for _, y := range rec.Y {
			row = append(row, y)
		}
		row = append(row, rec.ExecTime.Seconds(), rec.ErrMsg)
		if p.withExtras {
			row = append(row, rec.ErrDump)
		}
		rows = append(rows, row)
	}

	return &Table{Cols: cols, Rows: rows}
}
