package client

import (
	"context"
	"strings"
	"unicode"

	"mety-backend/internal/model"
)

// QuickPrompts are the suggestions offered under the chat input.
var QuickPrompts = []string{
	"Help me understand calculus derivatives",
	"Create a study schedule for finals",
	"Explain quantum physics basics",
	"Generate practice questions for biology",
}

const offlineReply = "That's a great question! I'm in offline mode right now, so I can only help with a few topics. " +
	"Try asking about derivatives, study schedules, physics, biology or photosynthesis. 📚"

type cannedReply struct {
	keywords []string
	reply    string
}

// Checked in order; the first rule with a matching word wins.
var cannedReplies = []cannedReply{
	{
		keywords: []string{"derivative", "derivatives", "calculus", "differentiate"},
		reply: "A derivative measures how a function changes as its input changes. " +
			"For f(x) = x², the derivative f'(x) = 2x gives the slope at every point. " +
			"Want to try a few practice problems? ✏️",
	},
	{
		keywords: []string{"schedule", "plan", "finals", "exam", "exams"},
		reply: "Let's build a study plan! Split your subjects into 45-minute blocks with 10-minute breaks, " +
			"put the hardest topics first while you're fresh, and leave the last two days for review. 📅",
	},
	{
		keywords: []string{"quantum", "physics"},
		reply: "Quantum physics describes how very small things behave. Two key ideas: energy comes in discrete packets (quanta), " +
			"and particles like electrons also behave like waves. Shall I explain the double-slit experiment? ⚛️",
	},
	{
		keywords: []string{"photosynthesis"},
		reply: "Photosynthesis is the process plants use to convert sunlight into energy. It happens in two main stages:\n\n" +
			"1. Light-dependent reactions (in thylakoids)\n2. Light-independent reactions (Calvin cycle)\n\n" +
			"Would you like me to explain each stage in detail? 🌱",
	},
	{
		keywords: []string{"biology", "practice", "questions", "quiz"},
		reply: "Here are some practice questions:\n\n1. What organelle produces ATP?\n" +
			"2. What is the difference between mitosis and meiosis?\n3. Which molecule carries genetic information?\n\n" +
			"Reply with your answers and I'll check them! 🧬",
	},
	{
		keywords: []string{"summarize", "summary", "notes"},
		reply: "Paste the text you want summarized and I'll pull out the key points, " +
			"definitions and a few review questions. 📝",
	},
	{
		keywords: []string{"hi", "hello", "hey"},
		reply:    GreetingMessage,
	},
}

// LocalFallback answers from canned study replies matched by keyword. It
// needs no network and never fails.
type LocalFallback struct{}

func NewLocalFallback() *LocalFallback {
	return &LocalFallback{}
}

func (LocalFallback) Answer(_ context.Context, req *model.ChatRequest) (string, error) {
	words := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(strings.ToLower(req.Message), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		words[w] = struct{}{}
	}

	for _, rule := range cannedReplies {
		for _, kw := range rule.keywords {
			if _, ok := words[kw]; ok {
				return rule.reply, nil
			}
		}
	}
	return offlineReply, nil
}
