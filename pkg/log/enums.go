package log

// name returns names[i], or UNKNOWN when i is out of range.
func name[E ~uint8](names []string, e E) string {
	if int(e) < len(names) {
		return names[e]
	}
	return "UNKNOWN"
}

// parse finds s among names.
func parse[E ~uint8](names []string, s string) (E, bool) {
	for i, n := range names {
		if n == s {
			return E(i), true
		}
	}
	return 0, false
}

// Direction is the flow of a message relative to the logging side.
type Direction uint8

const (
	DirectionIn Direction = iota
	DirectionOut
)

var directionNames = []string{"IN", "OUT"}

func (d Direction) String() string { return name(directionNames, d) }

// Layer is where an event was captured.
type Layer uint8

const (
	// LayerTransport sees raw frames.
	LayerTransport Layer = iota
	// LayerWire sees decoded requests and responses.
	LayerWire
	// LayerService sees connection and file operation outcomes.
	LayerService
)

var layerNames = []string{"TRANSPORT", "WIRE", "SERVICE"}

func (l Layer) String() string { return name(layerNames, l) }

// Category classifies events independently of their layer.
type Category uint8

const (
	CategoryMessage Category = iota
	CategoryState
	CategoryTransfer
	CategoryError
)

var categoryNames = []string{"MESSAGE", "STATE", "TRANSFER", "ERROR"}

func (c Category) String() string { return name(categoryNames, c) }

// ParseCategory parses a category name as printed by String.
func ParseCategory(s string) (Category, bool) {
	return parse[Category](categoryNames, s)
}

// Interface identifies the server surface that handled an operation.
type Interface uint8

const (
	// InterfaceStream is the framed CBOR stream protocol.
	InterfaceStream Interface = iota
	// InterfaceREST is the HTTP API.
	InterfaceREST
)

var interfaceNames = []string{"stream", "rest"}

func (i Interface) String() string {
	if int(i) < len(interfaceNames) {
		return interfaceNames[i]
	}
	return "unknown"
}

// MessageType tells requests from responses.
type MessageType uint8

const (
	MessageTypeRequest MessageType = iota
	MessageTypeResponse
)

var messageTypeNames = []string{"REQUEST", "RESPONSE"}

func (m MessageType) String() string { return name(messageTypeNames, m) }

// StateEntity is what a StateChangeEvent refers to.
type StateEntity uint8

const (
	StateEntityConnection StateEntity = iota
	StateEntityTransfer
	StateEntityServer
)

var stateEntityNames = []string{"CONNECTION", "TRANSFER", "SERVER"}

func (s StateEntity) String() string { return name(stateEntityNames, s) }
