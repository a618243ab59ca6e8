package prompts

import (
	"fmt"

	"github.com/xpanvictor/civicguru/internal/types"
)

type MessageKey int

const (
	MsgSessionError MessageKey = iota
	MsgStartFailed
	MsgAPIKeyMissing
	MsgRecognizerUnsupported
)

type Topic string

const (
	TopicTraffic   Topic = "traffic"
	TopicHygiene   Topic = "hygiene"
	TopicWaste     Topic = "waste"
	TopicTransport Topic = "transport"
	TopicDemocracy Topic = "democracy"
)

var Topics = []Topic{TopicTraffic, TopicHygiene, TopicWaste, TopicTransport, TopicDemocracy}

type content struct {
	status      map[string]string
	thinking    string
	messages    map[MessageKey]string
	topics      map[Topic]string
	aboutFormat string
	suggestions []string
}

var catalog = map[types.Language]content{
	types.ENGLISH: {
		status: map[string]string{
			"connecting":           "Connecting...",
			"capturing":            "Listening...",
			"recording":            "Recording...",
			"awaitingConfirmation": "Ready to send...",
			"processing":           "Analyzing...",
			"speaking":             "Speaking...",
			"idle":                 "Tap to start",
		},
		thinking: "Thinking...",
		messages: map[MessageKey]string{
			MsgSessionError:          "Oops! An error occurred during the session. Please try again.",
			MsgStartFailed:           "Failed to start. Check microphone permissions.",
			MsgAPIKeyMissing:         "API_KEY environment variable not set.",
			MsgRecognizerUnsupported: "Speech recognition is not supported on this device.",
		},
		topics: map[Topic]string{
			TopicTraffic:   "Traffic Rules",
			TopicHygiene:   "Public Hygiene",
			TopicWaste:     "Waste Management",
			TopicTransport: "Public Transport",
			TopicDemocracy: "Voting & Democracy",
		},
		aboutFormat: "Tell me about %s",
		suggestions: []string{"Tell me more", "Give an example", "What else?", "Quiz me"},
	},
	types.HINDI: {
		status: map[string]string{
			"connecting":           "कनेक्ट हो रहा है...",
			"capturing":            "सुन रहा हूँ...",
			"recording":            "रिकॉर्डिंग...",
			"awaitingConfirmation": "भेजने के लिए तैयार...",
			"processing":           "विश्लेषण हो रहा है...",
			"speaking":             "बोल रहा हूँ...",
			"idle":                 "शुरू करने के लिए टैप करें",
		},
		thinking: "सोच रहा हूँ...",
		messages: map[MessageKey]string{
			MsgSessionError:          "सत्र के दौरान एक त्रुटि हुई। कृपया पुनः प्रयास करें।",
			MsgStartFailed:           "शुरू करने में विफल। माइक्रोफ़ोन अनुमतियों की जाँच करें।",
			MsgAPIKeyMissing:         "API_KEY एनवायरनमेंट वैरिएबल सेट नहीं है।",
			MsgRecognizerUnsupported: "इस डिवाइस पर स्पीच रिकग्निशन समर्थित नहीं है।",
		},
		topics: map[Topic]string{
			TopicTraffic:   "यातायात के नियम",
			TopicHygiene:   "सार्वजनिक स्वच्छता",
			TopicWaste:     "कचरा प्रबंधन",
			TopicTransport: "सार्वजनिक परिवहन",
			TopicDemocracy: "मतदान और लोकतंत्र",
		},
		aboutFormat: "मुझे %s के बारे में बताएं",
		suggestions: []string{"और बताएं", "एक उदाहरण दें", "और क्या?", "मेरी परीक्षा लें"},
	},
}

func lookup(lang types.Language) content {
	if c, ok := catalog[lang]; ok {
		return c
	}
	return catalog[types.ENGLISH]
}

// Status is the user-facing line for a session state. Turn-based capture
// reads "Recording..." and a deep-mode call reads "Thinking...".
func Status(lang types.Language, state string, turnBased, thinking bool) string {
	c := lookup(lang)
	if thinking && state == "processing" {
		return c.thinking
	}
	if turnBased && state == "capturing" {
		return c.status["recording"]
	}
	return c.status[state]
}

func Message(lang types.Language, key MessageKey) string {
	return lookup(lang).messages[key]
}

// TopicLabel returns the localized label, false for unknown topics.
func TopicLabel(lang types.Language, t Topic) (string, bool) {
	l, ok := lookup(lang).topics[t]
	return l, ok
}

// TopicPrompt is the opening user message for a topic.
func TopicPrompt(lang types.Language, t Topic) (string, bool) {
	label, ok := TopicLabel(lang, t)
	if !ok {
		return "", false
	}
	return fmt.Sprintf(lookup(lang).aboutFormat, label), true
}

func Suggestions(lang types.Language) []string {
	s := lookup(lang).suggestions
	out := make([]string, len(s))
	copy(out, s)
	return out
}
