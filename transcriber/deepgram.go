package transcriber

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"nhooyr.io/websocket"
)

const deepgramStreamURL = "wss://api.deepgram.com/v1/listen"

type deepgramStreamResponse struct {
	Type        string `json:"type"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`
	Channel     struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

type deepgramConn struct {
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
}

// DialDeepgram opens a Deepgram live-transcription websocket with the fixed
// raw-PCM session parameters: linear16, punctuation, interim results,
// utterance-end events and a short endpointing window.
func DialDeepgram(ctx context.Context, cfg Config) (Conn, error) {
	cfg = cfg.withDefaults()

	endpoint, err := url.Parse(deepgramStreamURL)
	if err != nil {
		return nil, err
	}

	q := endpoint.Query()
	q.Set("model", cfg.Model)
	q.Set("language", cfg.Language)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(cfg.SampleRate))
	q.Set("channels", strconv.Itoa(cfg.Channels))
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")
	q.Set("interim_results", "true")
	q.Set("vad_events", "true")
	q.Set("utterance_end_ms", strconv.Itoa(cfg.UtteranceEndMs))
	q.Set("endpointing", strconv.Itoa(cfg.EndpointingMs))
	endpoint.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("Authorization", "Token "+cfg.APIKey)

	streamCtx, cancel := context.WithCancel(ctx)
	conn, _, err := websocket.Dial(streamCtx, endpoint.String(), &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("deepgram dial: %w", err)
	}
	// Audio frames are small but arrive continuously; the default read limit
	// is fine, writes must not queue behind a slow reader.
	return &deepgramConn{conn: conn, ctx: streamCtx, cancel: cancel}, nil
}

func (d *deepgramConn) Send(pcm []byte) error {
	if d.ctx.Err() != nil {
		return ErrNotConnected
	}
	return d.conn.Write(d.ctx, websocket.MessageBinary, pcm)
}

func (d *deepgramConn) Keepalive() error {
	if d.ctx.Err() != nil {
		return ErrNotConnected
	}
	return d.conn.Write(d.ctx, websocket.MessageText, []byte(`{"type":"KeepAlive"}`))
}

// Recv reads messages until one maps onto an Event. Metadata and
// speech-started notifications are consumed silently.
func (d *deepgramConn) Recv() (Event, error) {
	for {
		_, data, err := d.conn.Read(d.ctx)
		if err != nil {
			return Event{}, err
		}

		var resp deepgramStreamResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return Event{}, fmt.Errorf("deepgram response parse: %w", err)
		}

		ev, ok := eventFromResponse(resp)
		if !ok {
			continue
		}
		return ev, nil
	}
}

func eventFromResponse(resp deepgramStreamResponse) (Event, bool) {
	switch resp.Type {
	case "UtteranceEnd":
		return Event{Kind: KindUtteranceEnd}, true
	case "Results", "":
		transcript := ""
		if len(resp.Channel.Alternatives) > 0 {
			transcript = strings.TrimSpace(resp.Channel.Alternatives[0].Transcript)
		}
		return Event{
			Kind:        KindTranscript,
			Text:        transcript,
			IsFinal:     resp.IsFinal,
			SpeechFinal: resp.SpeechFinal,
		}, true
	default:
		// Metadata, SpeechStarted, future message types.
		return Event{}, false
	}
}

func (d *deepgramConn) Close() error {
	// Tell the backend we are done, then tear down. The control message is
	// best-effort; the cancel bounds everything.
	_ = d.conn.Write(d.ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`))
	d.cancel()
	return d.conn.Close(websocket.StatusNormalClosure, "")
}
