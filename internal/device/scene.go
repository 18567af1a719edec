package device

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/nora-local/internal/localexec"
)

// SceneConfig configures a Scene.
type SceneConfig struct {
	ID         string
	Name       string
	RoomHint   string
	Reversible bool
}

type activateSceneParams struct {
	Deactivate bool `json:"deactivate"`
}

// Scene is an activatable scene with the Scene trait.
type Scene struct {
	base

	reversible bool
	onActivate func(activated bool)
}

// NewScene creates a scene.
func NewScene(cfg SceneConfig) (*Scene, error) {
	if err := validateIdentity(cfg.ID, cfg.Name); err != nil {
		return nil, err
	}

	return &Scene{
		base: base{info: Info{
			ID:         cfg.ID,
			Type:       TypeScene,
			Traits:     []string{TraitScene},
			Name:            Name{Name: cfg.Name},
			RoomHint:        cfg.RoomHint,
			WillReportState: true,
			Attributes:      map[string]any{"sceneReversible": cfg.Reversible},
		}},
		reversible: cfg.Reversible,
	}, nil
}

// SetOnActivate registers a callback fired on activation (true) and
// deactivation (false).
func (s *Scene) SetOnActivate(fn func(activated bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onActivate = fn
}

// ExecuteCommand handles a controller command. Unknown commands produce no
// result.
func (s *Scene) ExecuteCommand(_ context.Context, command string, params json.RawMessage) (any, error) {
	if command != CommandActivateScene {
		return nil, nil
	}

	var p activateSceneParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidParams, command)
		}
	}

	s.mu.Lock()
	if p.Deactivate && !s.reversible {
		s.mu.Unlock()
		return Result{Online: true, ErrorCode: ErrorCodeActionNotAvailable}, nil
	}
	fn := s.onActivate
	s.mu.Unlock()

	if fn != nil {
		fn(!p.Deactivate)
	}
	return Result{Online: true}, nil
}

var (
	_ localexec.Device  = (*Scene)(nil)
	_ localexec.Stamper = (*Scene)(nil)
)
