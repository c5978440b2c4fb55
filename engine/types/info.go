package types

// Info define info response
type Info struct {
	ID              string
	ServerVersion   string
	OperatingSystem string
	Architecture    string
	NCPU            int
	MemTotal        int64
}
