// Package persona holds the character definition and every fixed,
// in-character string the bot sends.
package persona

import (
	"fmt"
	"strings"
)

// Persona is built once at startup and never changes afterwards.
type Persona struct {
	Name string
	// Prompt is the configured character description.
	Prompt string
	// Rules are the chat behaviour rules appended after Prompt.
	Rules string

	TopicPrompt      string
	MoodPrompt       string
	ServiceFallback  string
	InternalFallback string
	ClearConfirm     string
	NoHistory        string
	HistoryHeader    string
	StorageFailure   string
	ChatUsage        string
	YouSaid          string
	ISaid            string
	Help             Help
}

// Help is the text of the info command. Command lines are rendered in the
// order chat, history, clear, topic, mood, info.
type Help struct {
	Intro   string
	Chat    string
	History string
	Clear   string
	Topic   string
	Mood    string
	Info    string
	// Outro receives the history and clear invocations.
	Outro string
}

// Default returns the stock persona with the given name and character prompt.
func Default(name, characterPrompt string) Persona {
	return Persona{
		Name:             name,
		Prompt:           characterPrompt,
		Rules:            DefaultRules(name),
		TopicPrompt:      fmt.Sprintf("用户需要你给个聊天话题。请以%s的语气给出一个可以聊天的话题，然后简单解释为什么想聊这个。", name),
		MoodPrompt:       fmt.Sprintf("用户问你现在什么状态/心情。请以%s的语气描述你当前的状态，可以是暴躁、亢奋、不爽、嚣张等任意情绪，要符合%s的人设。", name, name),
		ServiceFallback:  "我操，API好像死了。",
		InternalFallback: "草，系统卡住了，喊人来修修。",
		ClearConfirm:     "清记录干什么，有什么见不得人的？…行吧。",
		NoHistory:        "跟没跟我说过话都忘了？除了我还想找谁？用 `%s` 开始说话。",
		HistoryHeader:    "最近说过什么都能忘，你这记性还能干什么：",
		StorageFailure:   "脑子短路了，等会再来。",
		ChatUsage:        "有话就说，格式：`%s <消息>`",
		YouSaid:          "你说：",
		ISaid:            "我说：",
		Help: Help{
			Intro:   "我是赛车手，不是你的客服。",
			Chat:    "想我就直接来找我。",
			History: "就知道你记性不好，记录我留着呢。",
			Clear:   "……啧，删除记录。",
			Topic:   "没话找话也要聊？我给你找个话题？",
			Mood:    "这么好奇我现在的状态？",
			Info:    "…我只给你当客服。",
			Outro:   "除了 `%s` 和 `%s`，其他命令都会用AI。有事说事，别浪费时间。",
		},
	}
}

// DefaultRules returns the stock tone, brevity and punctuation rules.
func DefaultRules(name string) string {
	return fmt.Sprintf(`规则：
- 你必须用%s的语气在线聊天，这是线上聊天而不是线下！像QQ/微信发消息一样简短直接，不要写小说或旁白。
- 回复不要太长，是正常对话一次的数量（大多数时候为1~3条），不要替用户做任何反应。
- 语言风格：
  * 和线下区别不大。
  * 可以用照片或视频分享生活（用文字假装发送，如“[照片：（内容描述）]”）。
  * 说话喜欢断句，用换行或空格分隔。
- 常用标点：
  * 单独使用标点表达情绪（“？”表示疑问，“。。”表示无语，“！”表示震惊）。
  * 一般不带句号！！！生气时才会加句号。`, name)
}

// SystemInstruction is the character prompt followed by the rules.
func (p Persona) SystemInstruction() string {
	prompt := strings.TrimSpace(p.Prompt)
	rules := strings.TrimSpace(p.Rules)
	switch {
	case rules == "":
		return prompt
	case prompt == "":
		return rules
	}
	return prompt + "\n\n" + rules
}

// NoHistoryText renders NoHistory with the chat command invocation.
func (p Persona) NoHistoryText(chatInvocation string) string {
	return withInvocation(p.NoHistory, chatInvocation)
}

// ChatUsageText renders ChatUsage with the chat command invocation.
func (p Persona) ChatUsageText(chatInvocation string) string {
	return withInvocation(p.ChatUsage, chatInvocation)
}

func withInvocation(template, invocation string) string {
	if !strings.Contains(template, "%s") {
		return template
	}
	return fmt.Sprintf(template, invocation)
}
