package device

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"sync"

	"github.com/nerrad567/nora-local/internal/localexec"
)

// Google Home device types.
const (
	TypeLock  = "action.devices.types.LOCK"
	TypeScene = "action.devices.types.SCENE"
)

// Google Home traits.
const (
	TraitLockUnlock = "action.devices.traits.LockUnlock"
	TraitScene      = "action.devices.traits.Scene"
)

// Google Home commands.
const (
	CommandLockUnlock    = "action.devices.commands.LockUnlock"
	CommandActivateScene = "action.devices.commands.ActivateScene"
)

// Error codes returned in command results.
const (
	ErrorCodeJammed             = "deviceJammingDetected"
	ErrorCodeAlreadyLocked      = "alreadyLocked"
	ErrorCodeAlreadyUnlocked    = "alreadyUnlocked"
	ErrorCodeActionNotAvailable = "actionNotAvailable"
)

// Validation constants.
const (
	maxIDLength   = 64
	maxNameLength = 100
)

var idRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:-]*$`)

// Name is the naming block of a device description.
type Name struct {
	Name         string   `json:"name"`
	DefaultNames []string `json:"defaultNames,omitempty"`
	Nicknames    []string `json:"nicknames,omitempty"`
}

// OtherDeviceID is an alternative id the controller may address a device by.
type OtherDeviceID struct {
	DeviceID string `json:"deviceId"`
}

// Info is the SYNC description of a device.
type Info struct {
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	Traits          []string        `json:"traits"`
	Name            Name            `json:"name"`
	RoomHint        string          `json:"roomHint,omitempty"`
	WillReportState bool            `json:"willReportState"`
	Attributes      map[string]any  `json:"attributes,omitempty"`
	OtherDeviceIDs  []OtherDeviceID `json:"otherDeviceIds,omitempty"`
	CustomData      map[string]any  `json:"customData,omitempty"`
}

// Clone returns a copy that shares no slices or maps with i.
func (i Info) Clone() Info {
	cpy := i
	cpy.Traits = slices.Clone(i.Traits)
	cpy.Name.DefaultNames = slices.Clone(i.Name.DefaultNames)
	cpy.Name.Nicknames = slices.Clone(i.Name.Nicknames)
	cpy.Attributes = maps.Clone(i.Attributes)
	cpy.OtherDeviceIDs = slices.Clone(i.OtherDeviceIDs)
	cpy.CustomData = maps.Clone(i.CustomData)
	return cpy
}

// Result is the response to a command that does not report full state.
type Result struct {
	Online    bool   `json:"online"`
	ErrorCode string `json:"errorCode,omitempty"`
}

// base holds the description shared by all device types.
type base struct {
	mu           sync.Mutex
	info         Info
	onInfoChange func(Info)
}

func (b *base) ID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.info.ID
}

// Info returns a copy of the device description.
func (b *base) Info() Info {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.info.Clone()
}

// SetOnInfoChange registers a callback fired when the description changes.
func (b *base) SetOnInfoChange(fn func(Info)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onInfoChange = fn
}

// SetLocalExecution records the routing metadata for local commands.
func (b *base) SetLocalExecution(m localexec.Metadata) {
	b.mu.Lock()
	ids := make([]OtherDeviceID, 0, len(m.OtherDeviceIDs))
	for _, id := range m.OtherDeviceIDs {
		ids = append(ids, OtherDeviceID{DeviceID: id})
	}
	b.info.OtherDeviceIDs = ids
	if b.info.CustomData == nil {
		b.info.CustomData = make(map[string]any)
	}
	b.info.CustomData["proxyId"] = m.ProxyID
	info := b.info.Clone()
	fn := b.onInfoChange
	b.mu.Unlock()

	if fn != nil {
		fn(info)
	}
}

func validateIdentity(id, name string) error {
	if id == "" || len(id) > maxIDLength || !idRegex.MatchString(id) {
		return fmt.Errorf("%w: id %q", ErrInvalidDevice, id)
	}
	if name == "" || len(name) > maxNameLength {
		return fmt.Errorf("%w: name of %s must be 1-%d characters", ErrInvalidDevice, id, maxNameLength)
	}
	return nil
}
