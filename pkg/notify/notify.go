// Package notify posts desk activity to Discord-compatible webhooks.
//
// Two channels are used: a startup/lifecycle webhook and an events webhook
// for desk activity. Delivery is strictly best effort; failures are logged
// and swallowed so a dead webhook can never break a circulation operation.
package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const postTimeout = 10 * time.Second

// Notifier routes messages to the configured webhooks. A Notifier with no
// URLs configured is valid and silently drops everything.
type Notifier struct {
	startupURL string
	eventsURL  string
	log        *zap.Logger

	// post is replaced in tests.
	post func(url, content string) error

	mu     sync.Mutex
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds a notifier. Either URL may be empty to disable that channel.
func New(startupURL, eventsURL string, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{
		startupURL: startupURL,
		eventsURL:  eventsURL,
		log:        log,
		post:       postWebhook,
	}
}

func postWebhook(url, content string) error {
	agent := fiber.Post(url)
	agent.Timeout(postTimeout)
	agent.JSON(fiber.Map{"content": content})
	code, _, errs := agent.Bytes()
	if len(errs) > 0 {
		return errs[0]
	}
	if code < 200 || code >= 300 {
		return fmt.Errorf("webhook returned status %d", code)
	}
	return nil
}

func (n *Notifier) send(url, content string) {
	if url == "" || content == "" {
		return
	}
	if err := n.post(url, content); err != nil {
		n.log.Warn("webhook delivery failed", zap.Error(err))
	}
}

// Startup announces the service coming up on the lifecycle channel.
func (n *Notifier) Startup(message string) { n.send(n.startupURL, message) }

// Shutdown announces the service going down on the lifecycle channel.
func (n *Notifier) Shutdown(message string) { n.send(n.startupURL, message) }

// Event posts desk activity (submits, admin decisions, failures) to the
// events channel.
func (n *Notifier) Event(message string) { n.send(n.eventsURL, message) }

// StartHeartbeat begins posting the status produced by report to the
// lifecycle channel every interval until Stop is called. Starting twice
// replaces the previous loop.
func (n *Notifier) StartHeartbeat(interval time.Duration, report func() string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopLocked()

	stop := make(chan struct{})
	n.stopCh = stop
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				n.send(n.startupURL, report())
			}
		}
	}()
}

// Stop halts the heartbeat loop. Safe to call when never started.
func (n *Notifier) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopLocked()
}

func (n *Notifier) stopLocked() {
	if n.stopCh != nil {
		close(n.stopCh)
		n.stopCh = nil
		n.wg.Wait()
	}
}
