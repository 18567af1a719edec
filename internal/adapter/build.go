package adapter

import (
	"fmt"

	"github.com/nerrad567/nora-local/internal/device"
	"github.com/nerrad567/nora-local/internal/infrastructure/config"
)

// FromConfig creates the devices listed in cfg and an adapter for each.
func FromConfig(cfg config.DevicesConfig, opts Options) ([]Adapter, error) {
	adapters := make([]Adapter, 0, len(cfg.Locks)+len(cfg.Scenes))

	for _, lc := range cfg.Locks {
		lock, err := device.NewLock(device.LockConfig{
			ID:                    lc.ID,
			Name:                  lc.Name,
			RoomHint:              lc.RoomHint,
			ErrorIfStateUnchanged: lc.ErrorIfStateUnchanged,
		})
		if err != nil {
			return nil, fmt.Errorf("lock %q: %w", lc.ID, err)
		}
		adapters = append(adapters, NewLock(lock, opts))
	}

	for _, sc := range cfg.Scenes {
		scene, err := device.NewScene(device.SceneConfig{
			ID:         sc.ID,
			Name:       sc.Name,
			RoomHint:   sc.RoomHint,
			Reversible: sc.Reversible,
		})
		if err != nil {
			return nil, fmt.Errorf("scene %q: %w", sc.ID, err)
		}
		adapters = append(adapters, NewScene(scene, opts))
	}

	return adapters, nil
}
