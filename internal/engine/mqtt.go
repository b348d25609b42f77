package engine

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/motionlab/facerelay/internal/imgcodec"
	"github.com/motionlab/facerelay/internal/monitoring"
)

// mqtt request/response wire format shared with the landmarker sidecar.
type detectRequest struct {
	Token      string `json:"token"`
	TSMs       int64  `json:"ts_ms"`
	Image      []byte `json:"image"`
	ResponseTo string `json:"response_to"`
}

type detectResponse struct {
	Token  string  `json:"token"`
	TSMs   int64   `json:"ts_ms"`
	Result *Result `json:"result"`
	Error  string  `json:"error,omitempty"`
}

// stalePendingAge bounds how long an unanswered request may occupy the
// pending map before Submit garbage-collects it.
const stalePendingAge = 10 * time.Second

// MQTTConfig configures the broker-backed detection engine.
type MQTTConfig struct {
	Broker        string
	ClientID      string
	RequestTopic  string
	ResponseTopic string
}

// MQTTEngine submits frames to a remote landmarker over an MQTT broker.
// Each request carries a token and the topic to answer on; the response
// subscription correlates completions back to their one-shot channels.
type MQTTEngine struct {
	client mqtt.Client
	cfg    MQTTConfig

	mu      sync.Mutex
	pending map[uuid.UUID]pendingRequest
}

type pendingRequest struct {
	ch        chan Completion
	submitted time.Time
}

// NewMQTTEngine connects to the broker and subscribes to the response
// topic.
func NewMQTTEngine(cfg MQTTConfig) (*MQTTEngine, error) {
	if cfg.ClientID == "" {
		cfg.ClientID = "facerelay-" + uuid.NewString()[:8]
	}

	e := &MQTTEngine{
		cfg:     cfg,
		pending: make(map[uuid.UUID]pendingRequest),
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true)
	e.client = mqtt.NewClient(opts)

	if token := e.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to broker %s: %w", cfg.Broker, token.Error())
	}
	if token := e.client.Subscribe(cfg.ResponseTopic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		e.dispatch(msg.Payload())
	}); token.Wait() && token.Error() != nil {
		e.client.Disconnect(250)
		return nil, fmt.Errorf("subscribe %s: %w", cfg.ResponseTopic, token.Error())
	}

	monitoring.Logf("[Engine] connected to broker %s (requests on %s)", cfg.Broker, cfg.RequestTopic)
	return e, nil
}

// Submit publishes a detection request without waiting for delivery.
func (e *MQTTEngine) Submit(frame imgcodec.Frame, tsMs int64, token uuid.UUID) (<-chan Completion, error) {
	image, err := imgcodec.EncodeJPEG(frame)
	if err != nil {
		return nil, fmt.Errorf("prepare frame for submission: %w", err)
	}

	payload, err := json.Marshal(detectRequest{
		Token:      token.String(),
		TSMs:       tsMs,
		Image:      image,
		ResponseTo: e.cfg.ResponseTopic,
	})
	if err != nil {
		return nil, fmt.Errorf("encode detection request: %w", err)
	}

	ch := make(chan Completion, 1)
	e.mu.Lock()
	e.purgeStaleLocked()
	e.pending[token] = pendingRequest{ch: ch, submitted: time.Now()}
	e.mu.Unlock()

	// Fire and forget: delivery failures surface as a tracker timeout.
	e.client.Publish(e.cfg.RequestTopic, 0, false, payload)
	return ch, nil
}

// dispatch routes one response payload to the request that produced it.
// Responses for unknown tokens (timed-out requests answered late) are
// dropped.
func (e *MQTTEngine) dispatch(payload []byte) {
	var resp detectResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		monitoring.Logf("[Engine] undecodable response: %v", err)
		return
	}
	token, err := uuid.Parse(resp.Token)
	if err != nil {
		monitoring.Logf("[Engine] response with bad token %q: %v", resp.Token, err)
		return
	}

	e.mu.Lock()
	req, ok := e.pending[token]
	if ok {
		delete(e.pending, token)
	}
	e.mu.Unlock()
	if !ok {
		monitoring.Logf("[Engine] dropping stale completion %s", token)
		return
	}

	c := Completion{Token: token, Result: resp.Result, TSMs: resp.TSMs}
	if resp.Error != "" {
		c.Err = fmt.Errorf("landmarker: %s", resp.Error)
	}
	req.ch <- c
}

// purgeStaleLocked drops pending entries nobody can answer anymore.
// Caller holds e.mu.
func (e *MQTTEngine) purgeStaleLocked() {
	cutoff := time.Now().Add(-stalePendingAge)
	for token, req := range e.pending {
		if req.submitted.Before(cutoff) {
			delete(e.pending, token)
		}
	}
}

// Close disconnects from the broker.
func (e *MQTTEngine) Close() error {
	e.client.Disconnect(250)
	return nil
}
