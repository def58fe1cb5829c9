// workers/notification_worker.go
package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

// drawNotification is the one-way message handed to the push service.
type drawNotification struct {
	UserID  string                 `json:"user_id"`
	Kind    string                 `json:"kind"` // WINNER_SELECTED, DRAW_CLOSED, NEW_INTEREST
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// NotificationDispatcher delivers draw notifications to the platform's
// push service. It is fire-and-forget by contract: Notify never blocks
// the caller and never reports an error back — a committed draw must
// not be affected by delivery problems. Failures are logged and dropped.
type NotificationDispatcher struct {
	baseURL      string // e.g., "http://localhost:8600"
	endpointPath string // e.g., "/api/v1/internal/notifications"
	serviceToken string
	httpClient   *http.Client
	queue        chan drawNotification
}

func NewNotificationDispatcher(pushServiceBaseURL, endpointPath, serviceToken string, httpClient *http.Client) *NotificationDispatcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &NotificationDispatcher{
		baseURL:      pushServiceBaseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient:   httpClient,
		queue:        make(chan drawNotification, 256),
	}
}

// Notify enqueues a notification. If the queue is full the message is
// dropped with a warning rather than blocking the draw path.
func (d *NotificationDispatcher) Notify(userID, kind string, payload map[string]interface{}) {
	select {
	case d.queue <- drawNotification{UserID: userID, Kind: kind, Payload: payload}:
	default:
		log.Printf("⚠️ [NOTIFY] Queue full — dropping %s notification for user %s", kind, userID)
	}
}

func (d *NotificationDispatcher) Start(ctx context.Context) {
	log.Println("🔁 Starting Notification Dispatcher (draw events → push service)…")
	go d.run(ctx)
}

func (d *NotificationDispatcher) run(ctx context.Context) {
	for {
		select {
		case n := <-d.queue:
			if err := d.send(ctx, n); err != nil {
				log.Printf("❌ [NOTIFY] Failed to deliver %s to user %s: %v", n.Kind, n.UserID, err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Notification Dispatcher stopped")
			return
		}
	}
}

func (d *NotificationDispatcher) send(ctx context.Context, n drawNotification) error {
	base, err := url.Parse(d.baseURL)
	if err != nil {
		return err
	}
	endpointURL := base.JoinPath(d.endpointPath).String()

	body, err := json.Marshal(n)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", endpointURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", d.serviceToken)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Printf("⚠️ [NOTIFY] Push service returned %d for %s → user %s: %s",
			resp.StatusCode, n.Kind, n.UserID, string(errBody))
	}
	return nil
}
