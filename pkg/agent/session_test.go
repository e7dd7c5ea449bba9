package agent_test

import (
	"bytes"
	"context"
	"errors"
	"iter"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/difyvoice/pkg/agent"
	"github.com/papercomputeco/difyvoice/pkg/llm"
	"github.com/papercomputeco/difyvoice/pkg/logger"
)

// scriptedStreamer yields fragments and then an optional error.
type scriptedStreamer struct {
	fragments []string
	err       error

	queries []string
	opts    []llm.ChatOptions
	yielded int
}

func (s *scriptedStreamer) Chat(_ context.Context, chatCtx *llm.ChatContext, opts ...llm.ChatOption) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		s.queries = append(s.queries, chatCtx.LastContent())
		s.opts = append(s.opts, llm.ApplyChatOptions(opts...))
		for _, f := range s.fragments {
			s.yielded++
			if !yield(f, nil) {
				return
			}
		}
		if s.err != nil {
			yield("", s.err)
		}
	}
}

type recordingObserver struct {
	agent.NopObserver
	events []string
	errs   []error
}

func (o *recordingObserver) SpeechStarted() { o.events = append(o.events, "speech_started") }
func (o *recordingObserver) SpeechEnded()   { o.events = append(o.events, "speech_ended") }
func (o *recordingObserver) Thinking()      { o.events = append(o.events, "thinking") }
func (o *recordingObserver) Speaking()      { o.events = append(o.events, "speaking") }

func (o *recordingObserver) Transcribing(partial string) {
	o.events = append(o.events, "transcribing:"+partial)
}

func (o *recordingObserver) Error(err error) {
	o.events = append(o.events, "error")
	o.errs = append(o.errs, err)
}

var _ = Describe("Session", func() {
	var (
		streamer *scriptedStreamer
		observer *recordingObserver
		spoken   []string
		session  *agent.Session
	)

	BeforeEach(func() {
		streamer = &scriptedStreamer{}
		observer = &recordingObserver{}
		spoken = nil

		var err error
		session, err = agent.NewSession(agent.SessionConfig{
			Streamer: streamer,
			Observer: observer,
			Speaker: agent.SpeakerFunc(func(_ context.Context, text string) error {
				spoken = append(spoken, text)
				return nil
			}),
			Options: []llm.ChatOption{llm.WithTemperature(0.2)},
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("requires a streamer", func() {
		_, err := agent.NewSession(agent.SessionConfig{})
		Expect(err).To(MatchError(agent.ErrNoStreamer))
	})

	It("streams an answer and records both sides of the turn", func() {
		streamer.fragments = []string{"hi", " friend"}

		answer, err := session.HandleUserTurn(context.Background(), "hello there")
		Expect(err).NotTo(HaveOccurred())
		Expect(answer).To(Equal("hi friend"))

		Expect(streamer.queries).To(Equal([]string{"hello there"}))
		Expect(*streamer.opts[0].Temperature).To(Equal(0.2))
		Expect(spoken).To(Equal([]string{"hi", " friend"}))
		Expect(observer.events).To(Equal([]string{"thinking", "speaking"}))
		Expect(session.History()).To(Equal([]llm.Message{
			{Role: llm.RoleUser, Content: "hello there"},
			{Role: llm.RoleAssistant, Content: "hi friend"},
		}))
	})

	It("notifies speaking for an empty first fragment without voicing it", func() {
		streamer.fragments = []string{"", "ok"}

		_, err := session.HandleUserTurn(context.Background(), "q")
		Expect(err).NotTo(HaveOccurred())
		Expect(spoken).To(Equal([]string{"ok"}))
		Expect(observer.events).To(Equal([]string{"thinking", "speaking"}))
	})

	It("keeps a partial answer when the stream fails", func() {
		boom := errors.New("connection reset")
		streamer.fragments = []string{"partial"}
		streamer.err = boom

		answer, err := session.HandleUserTurn(context.Background(), "q")
		Expect(err).To(MatchError(boom))
		Expect(answer).To(Equal("partial"))
		Expect(observer.events).To(Equal([]string{"thinking", "speaking", "error"}))
		Expect(observer.errs).To(ConsistOf(boom))
		Expect(session.History()).To(HaveLen(2))
	})

	It("records only the user message when nothing was answered", func() {
		streamer.err = errors.New("status 500")

		_, err := session.HandleUserTurn(context.Background(), "q")
		Expect(err).To(HaveOccurred())
		Expect(observer.events).To(Equal([]string{"thinking", "error"}))
		Expect(session.History()).To(Equal([]llm.Message{{Role: llm.RoleUser, Content: "q"}}))
	})

	It("stops consuming the stream when the speaker fails", func() {
		streamer.fragments = []string{"a", "b", "c"}
		s, err := agent.NewSession(agent.SessionConfig{
			Streamer: streamer,
			Observer: observer,
			Speaker: agent.SpeakerFunc(func(context.Context, string) error {
				return errors.New("tts down")
			}),
		})
		Expect(err).NotTo(HaveOccurred())

		answer, err := s.HandleUserTurn(context.Background(), "q")
		Expect(err).To(MatchError(ContainSubstring("speaking: tts down")))
		Expect(answer).To(Equal("a"))
		Expect(streamer.yielded).To(Equal(1))
	})

	It("reports the heard utterance before the turn runs", func() {
		streamer.fragments = []string{"hi"}

		session.Listen("hello there")
		_, err := session.HandleUserTurn(context.Background(), "hello there")
		Expect(err).NotTo(HaveOccurred())

		Expect(observer.events).To(Equal([]string{
			"speech_started",
			"transcribing:hello there",
			"speech_ended",
			"thinking",
			"speaking",
		}))
		Expect(session.History()).To(HaveLen(2))
	})

	It("uses a swapped streamer for later turns", func() {
		next := &scriptedStreamer{fragments: []string{"new"}}
		session.SetStreamer(next)
		session.SetStreamer(nil)

		answer, err := session.HandleUserTurn(context.Background(), "q")
		Expect(err).NotTo(HaveOccurred())
		Expect(answer).To(Equal("new"))
		Expect(streamer.queries).To(BeEmpty())
	})

	Describe("Greet", func() {
		It("says the persona greeting", func() {
			ok, err := session.Greet(context.Background(), "lawyer")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(spoken).To(HaveLen(1))
			Expect(session.History()[0].Role).To(Equal(llm.RoleAssistant))
		})

		It("warns for an unknown persona", func() {
			var buf bytes.Buffer
			s, err := agent.NewSession(agent.SessionConfig{
				Streamer: streamer,
				Logger:   logger.New(logger.WithWriter(&buf), logger.WithJSON(true)),
			})
			Expect(err).NotTo(HaveOccurred())

			ok, err := s.Greet(context.Background(), "default_agent")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
			Expect(buf.String()).To(ContainSubstring("unknown agent name"))
			Expect(s.History()).To(BeEmpty())
		})
	})
})

var _ = Describe("LogObserver", func() {
	It("logs the console messages", func() {
		var buf bytes.Buffer
		obs := agent.LogObserver{Logger: logger.New(logger.WithWriter(&buf), logger.WithJSON(true))}

		obs.SpeechStarted()
		obs.Transcribing("你好")
		obs.SpeechEnded()
		obs.Thinking()
		obs.Speaking()
		obs.Error(errors.New("boom"))

		out := buf.String()
		Expect(out).To(ContainSubstring("用户开始说话..."))
		Expect(out).To(ContainSubstring("正在识别: 你好"))
		Expect(out).To(ContainSubstring("用户停止说话"))
		Expect(out).To(ContainSubstring("正在思考..."))
		Expect(out).To(ContainSubstring("正在回答..."))
		Expect(out).To(ContainSubstring("错误: boom"))
	})
})
