package agent

import "log/slog"

// Observer receives voice pipeline lifecycle notifications.
type Observer interface {
	SpeechStarted()
	SpeechEnded()
	Transcribing(partial string)
	Thinking()
	Speaking()
	Error(err error)
}

// NopObserver ignores every notification. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) SpeechStarted()      {}
func (NopObserver) SpeechEnded()        {}
func (NopObserver) Transcribing(string) {}
func (NopObserver) Thinking()           {}
func (NopObserver) Speaking()           {}
func (NopObserver) Error(error)         {}

// LogObserver reports lifecycle notifications through a logger using the
// agent's console wording.
type LogObserver struct {
	Logger *slog.Logger
}

func (o LogObserver) SpeechStarted() { o.Logger.Info("用户开始说话...") }
func (o LogObserver) SpeechEnded()   { o.Logger.Info("用户停止说话") }
func (o LogObserver) Thinking()      { o.Logger.Info("正在思考...") }
func (o LogObserver) Speaking()      { o.Logger.Info("正在回答...") }

func (o LogObserver) Transcribing(partial string) {
	o.Logger.Info("正在识别: " + partial)
}

func (o LogObserver) Error(err error) {
	o.Logger.Error("错误: "+err.Error(), "error", err)
}
