package csvfile

// Observer receives statistics from Readers and Writers. Implementations are
// called synchronously from ReadRow and WriteRow and must be cheap.
type Observer interface {
	// ObserveRow is called for every row returned by a Reader, with the number
	// of fields and the number of physical lines the row occupied.
	ObserveRow(fields, lines int)
	// ObserveEmptyLine is called for every zero-length line outside quotes.
	ObserveEmptyLine(behavior EmptyLineBehavior)
	// ObserveMultiLineCell is called once per row holding a quoted cell that
	// spans physical lines.
	ObserveMultiLineCell()
	// ObserveWrite is called for every row written by a Writer.
	ObserveWrite(fields, bytes int)
}

type nopObserver struct{}

func (nopObserver) ObserveRow(int, int)                {}
func (nopObserver) ObserveEmptyLine(EmptyLineBehavior) {}
func (nopObserver) ObserveMultiLineCell()              {}
func (nopObserver) ObserveWrite(int, int)              {}
