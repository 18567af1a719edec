package adapter

import (
	"context"

	"github.com/nerrad567/nora-local/internal/device"
)

// sceneEvent is published when the controller activates a scene.
type sceneEvent struct {
	Activated bool `json:"activated"`
}

// Scene runs a scene device. Scenes take no input.
type Scene struct {
	runner
	scene *device.Scene
}

// NewScene creates an adapter for scene.
func NewScene(scene *device.Scene, opts Options) *Scene {
	return &Scene{
		runner: newRunner(scene, opts),
		scene:  scene,
	}
}

// Run serves the scene until ctx is cancelled.
func (a *Scene) Run(ctx context.Context) error {
	a.scene.SetOnActivate(a.handleActivate)
	defer a.scene.SetOnActivate(nil)

	return a.run(ctx, nil)
}

func (a *Scene) handleActivate(activated bool) {
	id := a.scene.ID()
	a.logger.Info("scene activated", "device_id", id, "activated", activated)
	a.publish(a.opts.Topics.DeviceEvent(id), sceneEvent{Activated: activated}, false)
	if a.opts.Telemetry != nil {
		a.opts.Telemetry.WriteSceneActivation(id, activated)
	}
}
