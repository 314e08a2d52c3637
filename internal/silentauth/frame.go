package silentauth

import (
	"context"
	"net/http"
	"time"
)

// HTTPFrameOpener drives the provider flow by fetching the authorize URL in
// the background, following redirects until the provider lands on the
// loopback callback. It is the native stand-in for an invisible embedded
// frame: nothing is rendered and the caller only ever observes the message
// the callback delivers.
type HTTPFrameOpener struct {
	client *http.Client
}

// NewHTTPFrameOpener builds the production opener.
func NewHTTPFrameOpener(timeout time.Duration) *HTTPFrameOpener {
	return &HTTPFrameOpener{client: &http.Client{Timeout: timeout}}
}

// Open starts the flow. Errors establishing the request surface to the
// channel; errors inside the provider flow do not, they are inferred
// from silence, exactly like a cross-origin frame.
func (o *HTTPFrameOpener) Open(authorizeURL string) (Frame, error) {
	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, authorizeURL, nil)
	if err != nil {
		cancel()
		return nil, err
	}

	go func() {
		resp, err := o.client.Do(req)
		if err != nil {
			// Invisible by construction; the channel times out instead.
			return
		}
		resp.Body.Close()
	}()

	return &httpFrame{cancel: cancel}, nil
}

type httpFrame struct {
	cancel context.CancelFunc
}

func (f *httpFrame) Close() error {
	f.cancel()
	return nil
}
