package db

// SidesRow is one row of the sides relation; Sides is decoded from its JSON column.
type SidesRow struct {
	Date  string
	Sides []string
}

// SolutionRow identifies one solution of a date.
type SolutionRow struct {
	ID       int64
	Date     string
	Position int
}

// SolutionWordRow places a word at position Ord inside a solution.
type SolutionWordRow struct {
	SolutionID int64
	Word       string
	Ord        int
}

// Word is a dictionary entry. Definition is empty when none is stored.
type Word struct {
	Text       string
	Definition string
}
