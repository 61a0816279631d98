package alarm

import "fmt"

// Severity distinguishes the two shutdown classes a threshold can demand.
type Severity int

const (
	// SeveritySoft marks alarms that allow the host a long grace interval
	// to shut itself down before the platform is forced off.
	SeveritySoft Severity = iota
	// SeverityHard marks alarms that force the platform off after a short
	// grace interval.
	SeverityHard
)

// Direction distinguishes low-threshold from high-threshold alarms.
type Direction int

const (
	// DirectionLow is a value-too-low threshold alarm.
	DirectionLow Direction = iota
	// DirectionHigh is a value-too-high threshold alarm.
	DirectionHigh
)

// Kind is one of the four combinations of severity and direction.
type Kind int

const (
	// SoftLow is the low alarm on the soft shutdown interface.
	SoftLow Kind = iota
	// SoftHigh is the high alarm on the soft shutdown interface.
	SoftHigh
	// HardLow is the low alarm on the hard shutdown interface.
	HardLow
	// HardHigh is the high alarm on the hard shutdown interface.
	HardHigh
)

// Sensor threshold interfaces whose alarm properties the monitor watches.
const (
	// SoftShutdownInterface exposes the soft shutdown alarm properties.
	SoftShutdownInterface = "xyz.openbmc_project.Sensor.Threshold.SoftShutdown"
	// HardShutdownInterface exposes the hard shutdown alarm properties.
	HardShutdownInterface = "xyz.openbmc_project.Sensor.Threshold.HardShutdown"
)

// kindInfo ties a kind to its wire names.
type kindInfo struct {
	// iface is the D-Bus interface carrying the alarm property.
	iface string
	// property is the boolean alarm property name.
	property string
	// severity is the shutdown class of the kind.
	severity Severity
	// direction is the threshold direction of the kind.
	direction Direction
	// name is the human-readable kind name used in logs.
	name string
}

// kinds is the static table of all four alarm kinds.
//
//nolint:gochecknoglobals // Static lookup table, never mutated.
var kinds = map[Kind]kindInfo{
	SoftLow:  {SoftShutdownInterface, "SoftShutdownAlarmLow", SeveritySoft, DirectionLow, "SoftLow"},
	SoftHigh: {SoftShutdownInterface, "SoftShutdownAlarmHigh", SeveritySoft, DirectionHigh, "SoftHigh"},
	HardLow:  {HardShutdownInterface, "HardShutdownAlarmLow", SeverityHard, DirectionLow, "HardLow"},
	HardHigh: {HardShutdownInterface, "HardShutdownAlarmHigh", SeverityHard, DirectionHigh, "HardHigh"},
}

// Kinds returns all alarm kinds in a stable order.
func Kinds() []Kind {
	return []Kind{SoftLow, SoftHigh, HardLow, HardHigh}
}

// KindsForInterface returns the kinds carried by the provided interface.
// Unknown interfaces yield an empty slice.
func KindsForInterface(iface string) []Kind {
	var result []Kind

	for _, kind := range Kinds() {
		if kinds[kind].iface == iface {
			result = append(result, kind)
		}
	}

	return result
}

// KindForProperty resolves an interface and property name to a kind.
func KindForProperty(iface, property string) (Kind, bool) {
	for _, kind := range Kinds() {
		info := kinds[kind]
		if info.iface == iface && info.property == property {
			return kind, true
		}
	}

	return 0, false
}

// Interface returns the D-Bus interface carrying the kind's alarm property.
func (k Kind) Interface() string {
	return kinds[k].iface
}

// Property returns the boolean alarm property name of the kind.
func (k Kind) Property() string {
	return kinds[k].property
}

// Severity returns the shutdown class of the kind.
func (k Kind) Severity() Severity {
	return kinds[k].severity
}

// Direction returns the threshold direction of the kind.
func (k Kind) Direction() Direction {
	return kinds[k].direction
}

// String returns the human-readable kind name.
func (k Kind) String() string {
	info, ok := kinds[k]
	if !ok {
		return fmt.Sprintf("Kind(%d)", int(k))
	}

	return info.name
}

// Key identifies a single tracked alarm: one kind on one sensor object.
type Key struct {
	// Path is the D-Bus object path of the sensor.
	Path string
	// Kind is the alarm kind on that sensor.
	Kind Kind
}

// String renders the key for logs and diagnostics.
func (k Key) String() string {
	return k.Path + ":" + k.Kind.String()
}

// State is the per-key lifecycle position of a tracked alarm.
type State int

const (
	// StateIdle means the alarm is not asserted, or power is off.
	StateIdle State = iota
	// StateArmed means the alarm was asserted under power and a shutdown
	// timer is pending.
	StateArmed
	// StateFired means the timer expired and a shutdown was commanded.
	// Fired is terminal for the process lifetime.
	StateFired
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateArmed:
		return "Armed"
	case StateFired:
		return "Fired"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}
