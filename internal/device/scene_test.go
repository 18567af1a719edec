package device

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScene(t *testing.T, reversible bool) *Scene {
	t.Helper()
	s, err := NewScene(SceneConfig{ID: "movie-night", Name: "Movie night", Reversible: reversible})
	require.NoError(t, err)
	return s
}

func TestNewScene_Validation(t *testing.T) {
	_, err := NewScene(SceneConfig{ID: "", Name: "x"})
	assert.ErrorIs(t, err, ErrInvalidDevice)

	_, err = NewScene(SceneConfig{ID: "x"})
	assert.ErrorIs(t, err, ErrInvalidDevice)
}

func TestScene_Info(t *testing.T) {
	s := newTestScene(t, true)

	info := s.Info()
	assert.Equal(t, TypeScene, info.Type)
	assert.Equal(t, []string{TraitScene}, info.Traits)
	assert.Equal(t, true, info.Attributes["sceneReversible"])
	assert.True(t, info.WillReportState)
}

func TestScene_Activate(t *testing.T) {
	tests := []struct {
		name       string
		reversible bool
		params     string
		wantResult Result
		wantEvents []bool
	}{
		{"activate", false, `{"deactivate":false}`, Result{Online: true}, []bool{true}},
		{"activate without params", false, ``, Result{Online: true}, []bool{true}},
		{"deactivate reversible", true, `{"deactivate":true}`, Result{Online: true}, []bool{false}},
		{"deactivate irreversible", false, `{"deactivate":true}`, Result{Online: true, ErrorCode: ErrorCodeActionNotAvailable}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestScene(t, tt.reversible)

			var events []bool
			s.SetOnActivate(func(activated bool) { events = append(events, activated) })

			res, err := s.ExecuteCommand(context.Background(), CommandActivateScene, json.RawMessage(tt.params))
			require.NoError(t, err)
			assert.Equal(t, tt.wantResult, res)
			assert.Equal(t, tt.wantEvents, events)
		})
	}
}

func TestScene_ResultJSON(t *testing.T) {
	s := newTestScene(t, false)

	res, err := s.ExecuteCommand(context.Background(), CommandActivateScene, json.RawMessage(`{}`))
	require.NoError(t, err)
	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Equal(t, `{"online":true}`, string(data))
}

func TestScene_UnknownCommand(t *testing.T) {
	s := newTestScene(t, false)

	res, err := s.ExecuteCommand(context.Background(), CommandLockUnlock, json.RawMessage(`{"lock":true}`))
	assert.NoError(t, err)
	assert.Nil(t, res)
}

func TestScene_InvalidParams(t *testing.T) {
	s := newTestScene(t, false)

	_, err := s.ExecuteCommand(context.Background(), CommandActivateScene, json.RawMessage(`[`))
	assert.ErrorIs(t, err, ErrInvalidParams)
}
