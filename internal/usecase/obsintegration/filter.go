package obsintegration

import (
	"encoding/json"
	"fmt"
	"strings"

	"zhatMod/internal/app/events"
)

const (
	ComparisonIs    = "is"
	ComparisonIsNot = "is not"
)

// Eventos que traen sceneName y que el filtro de escena evalúa.
var sceneEvents = map[string]struct{}{
	"CurrentProgramSceneChanged": {},
	"CurrentPreviewSceneChanged": {},
	"SceneCreated":               {},
	"SceneRemoved":               {},
}

// SceneNameFilter deja pasar los eventos de escena cuyo sceneName cumple la comparación.
// Los demás eventos pasan siempre. Value vacío no filtra nada.
type SceneNameFilter struct {
	Comparison string `json:"comparison"`
	Value      string `json:"value"`
}

func NewSceneNameFilter(value, comparison string) (SceneNameFilter, error) {
	comparison = strings.ToLower(strings.TrimSpace(comparison))
	switch comparison {
	case "":
		comparison = ComparisonIs
	case ComparisonIs, ComparisonIsNot:
	default:
		return SceneNameFilter{}, fmt.Errorf("obsintegration: comparación %q (want %q or %q)", comparison, ComparisonIs, ComparisonIsNot)
	}
	return SceneNameFilter{Comparison: comparison, Value: strings.TrimSpace(value)}, nil
}

func (f SceneNameFilter) Empty() bool {
	return f.Value == ""
}

func (f SceneNameFilter) Matches(ev events.OBSEventDTO) bool {
	if f.Empty() {
		return true
	}
	if _, ok := sceneEvents[ev.Type]; !ok {
		return true
	}

	var data struct {
		SceneName string `json:"sceneName"`
	}
	if err := json.Unmarshal(ev.Data, &data); err != nil {
		return false
	}

	same := data.SceneName == f.Value
	if f.Comparison == ComparisonIsNot {
		return !same
	}
	return same
}
