package core

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

var defaultFallbacks = []string{
	"I understand your concern about medication management. Here are some helpful strategies: 1) Use a daily pill organizer with compartments for each day of the week. 2) Set phone alarms for medication times. 3) Keep a medication list with dosages and timing. 4) Consider asking your pharmacist about blister packing services. Always consult with healthcare providers before making changes to medication routines.",
	"Thank you for sharing your mobility concerns. Here are some gentle exercises and safety tips: 1) Chair exercises can help maintain strength and flexibility. 2) Consider using assistive devices like grab bars in the bathroom. 3) Ensure good lighting throughout the home. 4) Regular physical therapy can help maintain mobility. 5) Always consult with a healthcare provider before starting new exercises.",
	"Emotional well-being is just as important as physical health. Here are some supportive suggestions: 1) Maintain social connections through phone calls or video chats. 2) Engage in hobbies or activities that bring joy. 3) Consider counseling or support groups. 4) Practice relaxation techniques like deep breathing. 5) Don't hesitate to reach out to family, friends, or healthcare providers when feeling overwhelmed.",
	"Daily care routines can be made easier with these tips: 1) Create a consistent daily schedule. 2) Prepare meals in advance when possible. 3) Use adaptive tools for dressing and grooming. 4) Keep important items within easy reach. 5) Consider meal delivery services if cooking becomes difficult. Remember, it's okay to ask for help from family or professional caregivers.",
	"For emergency preparedness, I recommend: 1) Keep emergency contacts easily accessible. 2) Have a medical alert system if living alone. 3) Keep important medications in a readily accessible location. 4) Ensure smoke detectors and carbon monoxide detectors are working. 5) Have a flashlight and extra batteries available. If this is an urgent medical situation, please call 911 immediately.",
	"Regarding health monitoring, here are some helpful approaches: 1) Keep a daily log of symptoms or concerns. 2) Monitor vital signs as recommended by your doctor. 3) Stay up-to-date with regular medical appointments. 4) Keep a list of all medications and supplements. 5) Don't hesitate to contact healthcare providers with questions or concerns. Early intervention is often the best approach.",
}

// FallbackPool supplies pre-authored replies used when the AI responder
// cannot produce one.
type FallbackPool struct {
	texts []string
	pick  func(n int) int
}

func NewFallbackPool(texts []string) *FallbackPool {
	if len(texts) == 0 {
		texts = defaultFallbacks
	}
	return &FallbackPool{texts: texts, pick: rand.Intn}
}

func DefaultFallbackPool() *FallbackPool { return NewFallbackPool(nil) }

func (p *FallbackPool) Pick() string {
	return p.texts[p.pick(len(p.texts))]
}

func (p *FallbackPool) Contains(text string) bool {
	for _, t := range p.texts {
		if t == text {
			return true
		}
	}
	return false
}

// AssistantStats counts responder outcomes so degradation is visible to operators.
type AssistantStats struct {
	completions atomic.Int64
	fallbacks   atomic.Int64

	mu          sync.Mutex
	lastFailure time.Time
	lastReason  string
}

type AssistantSnapshot struct {
	Completions   int64      `json:"completions"`
	Fallbacks     int64      `json:"fallbacks"`
	LastFailureAt *time.Time `json:"lastFailureAt,omitempty"`
	LastReason    string     `json:"lastReason,omitempty"`
}

func (s *AssistantStats) recordCompletion() { s.completions.Add(1) }

func (s *AssistantStats) recordFallback(at time.Time, reason string) {
	s.fallbacks.Add(1)
	s.mu.Lock()
	s.lastFailure = at
	s.lastReason = reason
	s.mu.Unlock()
}

func (s *AssistantStats) Snapshot() AssistantSnapshot {
	snap := AssistantSnapshot{Completions: s.completions.Load(), Fallbacks: s.fallbacks.Load()}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.lastFailure.IsZero() {
		at := s.lastFailure
		snap.LastFailureAt = &at
		snap.LastReason = s.lastReason
	}
	return snap
}
