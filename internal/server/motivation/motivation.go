// Package motivation generates the encouragement copy shown after
// successful actions. Pure lookup/random-choice, no state.
package motivation

import (
	"fmt"
	"math/rand"
	"strings"
)

var welcomeMessages = []string{
	"Welcome back! Ready to earn more XP?",
	"Great to see you! Let's make today productive!",
	"Your contributions make a difference!",
	"Ready to level up today?",
}

var uploadMessages = []string{
	"Awesome upload! You're contributing amazing content!",
	"Fantastic! Your upload earned you %d XP points!",
	"Great job! Keep sharing quality content!",
	"Upload number %d in the books. Keep the quality coming!",
	"Outstanding work! %d XP points added to your account!",
}

var reviewMessages = []string{
	"Amazing review! You're helping make the platform better!",
	"Great job! Your insights are valuable to the community!",
	"Outstanding review! You earned %d XP points!",
	"Review number %d keeps the community honest. Thank you!",
	"Brilliant analysis! Keep up the great reviewing!",
}

// Welcome returns a random greeting.
func Welcome() string {
	return welcomeMessages[rand.Intn(len(welcomeMessages))]
}

// UploadSuccess returns a random message for a successful upload.
// xp is the XP just earned, count the user's lifetime upload total.
func UploadSuccess(xp, count int64) string {
	return pick(uploadMessages, xp, count)
}

// ReviewSuccess returns a random message for a successful review.
func ReviewSuccess(xp, count int64) string {
	return pick(reviewMessages, xp, count)
}

func pick(messages []string, xp, count int64) string {
	msg := messages[rand.Intn(len(messages))]
	if !strings.Contains(msg, "%d") {
		return msg
	}
	if strings.Contains(msg, "XP") {
		return fmt.Sprintf(msg, xp)
	}
	return fmt.Sprintf(msg, count)
}
