package notify

import "fmt"

// RenderedTemplate is the channel-agnostic output of template rendering;
// gateways pick the parts they can carry (SMS drops the subject).
type RenderedTemplate struct {
	Subject string
	Body    string
}

// RenderTemplate turns a template id plus payload into display text.
// Rendering lives here rather than in each gateway so every channel says the
// same thing about the same event.
func RenderTemplate(templateID string, payload map[string]any) RenderedTemplate {
	switch templateID {
	case TemplateCallAlert:
		return RenderedTemplate{
			Subject: "Incoming call",
			Body:    fmt.Sprintf("%s is calling you about your service request. Open the app to answer.", str(payload, "callerName", "A customer")),
		}
	case TemplateCallSummary:
		return RenderedTemplate{
			Subject: "Call summary",
			Body:    fmt.Sprintf("Your call ended. Duration: %vs.", val(payload, "durationSeconds", "0")),
		}
	case TemplateMessageAlert:
		return RenderedTemplate{
			Subject: "New message",
			Body:    fmt.Sprintf("%s sent you a message: %s", str(payload, "fromName", "Someone"), str(payload, "preview", "")),
		}
	default:
		return RenderedTemplate{
			Subject: "Notification",
			Body:    fmt.Sprintf("You have a new notification (%s).", templateID),
		}
	}
}

func str(payload map[string]any, key, fallback string) string {
	if payload == nil {
		return fallback
	}
	if v, ok := payload[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func val(payload map[string]any, key, fallback string) string {
	if payload == nil {
		return fallback
	}
	if v, ok := payload[key]; ok {
		return fmt.Sprintf("%v", v)
	}
	return fallback
}
