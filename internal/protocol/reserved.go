package protocol

// Event names a stream binding uses for itself; message definitions may not take them.
var reservedNames = []string{
	"close",
	"drain",
	"error",
	"finish",
	"pipe",
	"unpipe",
	"data",
	"end",
	"readable",
	"writable",
}

func ReservedNames() []string {
	out := make([]string, len(reservedNames))
	copy(out, reservedNames)
	return out
}

func IsReserved(name string) bool {
	for _, r := range reservedNames {
		if r == name {
			return true
		}
	}
	return false
}
