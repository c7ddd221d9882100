package relay

import (
	"context"
	"fmt"
	"io"
	"sync"

	"google.golang.org/genai"
)

// DefaultLiveModel is the default model for realtime voice sessions.
const DefaultLiveModel = "gemini-2.0-flash-exp"

// GeminiConnector opens Gemini Live sessions.
type GeminiConnector struct{}

var _ Connector = (*GeminiConnector)(nil)

// Connect opens one Live session with the persona prompt as the fixed system
// instruction and the requested prebuilt voice.
func (c *GeminiConnector) Connect(ctx context.Context, params ConnectParams) (Session, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  params.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	model := params.Model
	if model == "" {
		model = DefaultLiveModel
	}

	cfg := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
	}
	if params.SystemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: params.SystemPrompt}},
		}
	}
	if params.Voice != "" {
		cfg.SpeechConfig = &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{
					VoiceName: params.Voice,
				},
			},
		}
	}

	session, err := client.Live.Connect(model, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to model %s: %w", model, err)
	}

	return &geminiSession{session: session}, nil
}

// geminiSession adapts a genai Live session to the Session interface.
type geminiSession struct {
	session *genai.Session

	// pending holds audio parts beyond the first from the last server
	// message, preserving production order.
	pending [][]byte

	closeOnce sync.Once
}

var _ Session = (*geminiSession)(nil)

func (s *geminiSession) SendAudio(pcm []byte) error {
	msg := genai.LiveClientMessage{
		RealtimeInput: &genai.LiveClientRealtimeInput{
			MediaChunks: []*genai.Blob{
				{Data: pcm, MIMEType: "audio/pcm"},
			},
		},
	}
	return s.session.Send(&msg)
}

func (s *geminiSession) ReceiveAudio() ([]byte, error) {
	for {
		if len(s.pending) > 0 {
			chunk := s.pending[0]
			s.pending = s.pending[1:]
			return chunk, nil
		}

		msg, err := s.session.Receive()
		if err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("live session receive: %w", err)
		}

		if msg.ServerContent == nil || msg.ServerContent.ModelTurn == nil {
			continue
		}
		for _, part := range msg.ServerContent.ModelTurn.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				s.pending = append(s.pending, part.InlineData.Data)
			}
		}
	}
}

func (s *geminiSession) Close() error {
	s.closeOnce.Do(func() {
		s.session.Close()
	})
	return nil
}
