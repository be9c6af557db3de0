package webapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dmikhno/groupscan/internal/transport"
)

// BridgeChannel adapts the bot's HTTP bridge to the Channel capability:
// outbound data is POSTed, inbound events are long-polled. It exists so
// the webapp strategy can run outside a real host environment.
type BridgeChannel struct {
	baseURL string
	http    *http.Client
	log     *logrus.Logger

	events   chan transport.Envelope
	done     chan struct{}
	stopOnce sync.Once
}

const (
	bridgePollWait    = 25 * time.Second
	bridgeRetryDelay  = 2 * time.Second
	bridgeEventBuffer = 32
)

// NewBridge creates the channel and starts its poll loop.
func NewBridge(baseURL string, log *logrus.Logger) *BridgeChannel {
	b := &BridgeChannel{
		baseURL: strings.TrimRight(baseURL, "/"),
		// The poll request itself bounds how long a round trip may take.
		http:   &http.Client{Timeout: bridgePollWait + 5*time.Second},
		log:    log,
		events: make(chan transport.Envelope, bridgeEventBuffer),
		done:   make(chan struct{}),
	}
	go b.poll()
	return b
}

// Close stops the poll loop and closes the event feed.
func (b *BridgeChannel) Close() {
	b.stopOnce.Do(func() { close(b.done) })
}

// SendData hands an outbound payload to the bridge.
func (b *BridgeChannel) SendData(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/webapp/send", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("bridge send: status %d", resp.StatusCode)
	}
	return nil
}

// Events returns the inbound event feed.
func (b *BridgeChannel) Events() <-chan transport.Envelope {
	return b.events
}

// poll long-polls the bridge for event batches until closed.
func (b *BridgeChannel) poll() {
	defer close(b.events)

	url := fmt.Sprintf("%s/webapp/events?wait=%d", b.baseURL, int(bridgePollWait.Seconds()))
	for {
		select {
		case <-b.done:
			return
		default:
		}

		batch, err := b.fetchBatch(url)
		if err != nil {
			b.log.WithError(err).Debug("bridge poll failed, retrying")
			select {
			case <-b.done:
				return
			case <-time.After(bridgeRetryDelay):
			}
			continue
		}

		for _, env := range batch {
			select {
			case b.events <- env:
			case <-b.done:
				return
			}
		}
	}
}

func (b *BridgeChannel) fetchBatch(url string) ([]transport.Envelope, error) {
	resp, err := b.http.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("bridge events: status %d", resp.StatusCode)
	}

	var batch []transport.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return nil, fmt.Errorf("decode event batch: %w", err)
	}
	return batch, nil
}
