package webhooks

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"

	pkgerrors "payhub/internal/pkg/errors"
	"payhub/internal/platform/models"
)

// Event is one logical webhook occurrence. All attempts of an event share it.
type Event struct {
	ID        string
	Type      string
	Timestamp int64
	Resource  map[string]interface{}
}

// TemplateSource finds the best template for (app, event_type): the default
// first, else the most recently updated match, else none.
type TemplateSource interface {
	FindForEvent(appID, eventType string) (*models.WebhookTemplate, error)
}

// resolveTemplate never fails: any lookup problem falls back to the built-in
// envelope so dispatch is never blocked on template configuration.
func resolveTemplate(templates TemplateSource, appID, eventType string) *models.WebhookTemplate {
	if templates == nil {
		return nil
	}
	tpl, err := templates.FindForEvent(appID, eventType)
	if err != nil {
		log.Warn().Err(err).Str("app_id", appID).Str("event_type", eventType).Msg("template lookup failed, using built-in envelope")
		return nil
	}
	return tpl
}

// Render produces the payload body and extra headers for an event. It is a
// pure function of its inputs: identical template and event yield
// byte-identical output, which keeps signatures stable across retries.
//
// A template format is a JSON document. String values starting with "$" are
// lookup paths ("$event.id", "$event.type", "$event.timestamp", "$resource",
// "$resource.<field>"); "$$" escapes a literal dollar. Everything else is
// copied verbatim. A nil template renders the built-in envelope.
func Render(tpl *models.WebhookTemplate, ev Event) ([]byte, map[string]string, error) {
	if tpl == nil {
		body, err := json.Marshal(builtinEnvelope(ev))
		return body, nil, err
	}

	var format interface{}
	if err := json.Unmarshal([]byte(tpl.Format), &format); err != nil {
		return nil, nil, &pkgerrors.RenderError{Reason: "template " + tpl.ID + " is not valid JSON: " + err.Error()}
	}

	resolved, err := substitute(format, ev)
	if err != nil {
		return nil, nil, err
	}

	body, err := json.Marshal(resolved)
	if err != nil {
		return nil, nil, &pkgerrors.RenderError{Reason: "template " + tpl.ID + ": " + err.Error()}
	}
	return body, tpl.Headers, nil
}

func builtinEnvelope(ev Event) map[string]interface{} {
	env := map[string]interface{}{
		"event_id":   ev.ID,
		"event_type": ev.Type,
		"created_at": ev.Timestamp,
		"resource":   ev.Resource,
	}
	if id, ok := ev.Resource["id"]; ok {
		env["resource_id"] = id
	}
	return env
}

func substitute(node interface{}, ev Event) (interface{}, error) {
	switch v := node.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, child := range v {
			resolved, err := substitute(child, ev)
			if err != nil {
				return nil, err
			}
			out[key] = resolved
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, child := range v {
			resolved, err := substitute(child, ev)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	case string:
		if strings.HasPrefix(v, "$$") {
			return v[1:], nil
		}
		if strings.HasPrefix(v, "$") {
			return resolvePath(v[1:], ev)
		}
		return v, nil
	default:
		return v, nil
	}
}

func resolvePath(path string, ev Event) (interface{}, error) {
	switch path {
	case "event.id":
		return ev.ID, nil
	case "event.type":
		return ev.Type, nil
	case "event.timestamp":
		return ev.Timestamp, nil
	case "resource":
		return ev.Resource, nil
	}

	if field, ok := strings.CutPrefix(path, "resource."); ok {
		return resolveField(ev.Resource, field, path)
	}
	return nil, &pkgerrors.RenderError{Reason: "unknown template path: $" + path}
}

func resolveField(resource map[string]interface{}, field, full string) (interface{}, error) {
	current := interface{}(resource)
	for _, part := range strings.Split(field, ".") {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, &pkgerrors.RenderError{Reason: "unknown template path: $" + full}
		}
		current, ok = obj[part]
		if !ok {
			return nil, &pkgerrors.RenderError{Reason: "unknown template path: $" + full}
		}
	}
	return current, nil
}
