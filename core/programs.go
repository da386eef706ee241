package conversation

import (
	"fmt"
	"sort"
	"strings"
)

// Program is one catalog entry the recommendation tool can surface.
type Program struct {
	Title       string
	Author      string
	Category    string
	Description string
	Keywords    []string
}

var programCatalog = []Program{
	{
		Title:       "The Silva Ultramind System",
		Author:      "Vishen Lakhiani",
		Category:    "Mind",
		Description: "Dynamic meditation and altered states of mind for intuition and creative insight.",
		Keywords:    []string{"meditation", "intuition", "focus", "visualization", "mind"},
	},
	{
		Title:       "Be Extraordinary",
		Author:      "Vishen Lakhiani",
		Category:    "Mind",
		Description: "Consciousness engineering for bending reality toward your goals.",
		Keywords:    []string{"growth", "goals", "mindset", "consciousness", "happiness"},
	},
	{
		Title:       "The M Word",
		Author:      "Emily Fletcher",
		Category:    "Mind",
		Description: "A daily meditation practice built for busy people with full calendars.",
		Keywords:    []string{"meditation", "stress", "calm", "performance", "sleep"},
	},
	{
		Title:       "Uncompromised Life",
		Author:      "Marisa Peer",
		Category:    "Transformation",
		Description: "Transformational hypnotherapy for rewiring self-esteem and confidence.",
		Keywords:    []string{"confidence", "self-esteem", "hypnotherapy", "beliefs", "transformation"},
	},
	{
		Title:       "The Quest for Personal Mastery",
		Author:      "Srikumar Rao",
		Category:    "Career",
		Description: "Mental models for resilience and meaning in work and life.",
		Keywords:    []string{"resilience", "career", "purpose", "meaning", "leadership"},
	},
	{
		Title:       "10X Fitness",
		Author:      "Ronan Oliveira",
		Category:    "Body",
		Description: "Science-backed strength training in two workouts a week.",
		Keywords:    []string{"fitness", "strength", "exercise", "health", "body"},
	},
	{
		Title:       "WILDFIT",
		Author:      "Eric Edmeades",
		Category:    "Body",
		Description: "Evolutionary approach to food freedom and lasting nutrition change.",
		Keywords:    []string{"nutrition", "food", "health", "energy", "weight"},
	},
	{
		Title:       "The Mastery of Sleep",
		Author:      "Michael Breus",
		Category:    "Body",
		Description: "Chronotype-based techniques for falling asleep faster and waking rested.",
		Keywords:    []string{"sleep", "rest", "energy", "insomnia", "recovery"},
	},
	{
		Title:       "Experience Lucid Dreaming",
		Author:      "Charlie Morley",
		Category:    "Mind",
		Description: "Techniques for waking up inside your dreams and directing them.",
		Keywords:    []string{"lucid", "dreaming", "dreams", "sleep", "awareness"},
	},
	{
		Title:       "Money EQ",
		Author:      "Ken Honda",
		Category:    "Entrepreneurship",
		Description: "Healing your relationship with money through the Japanese art of happy money.",
		Keywords:    []string{"money", "abundance", "wealth", "finance", "happiness"},
	},
}

var conversationSuggestions = []string{
	"What does a consistent meditation practice actually change in the brain?",
	"How can I fall asleep faster on nights my mind keeps racing?",
	"What is lucid dreaming and how do I get started?",
	"How do I rebuild confidence after a setback at work?",
	"What small habits compound into more daily energy?",
}

// RecommendPrograms scores the catalog against the topic's terms and
// returns the best matches, strongest first. Keyword hits outweigh
// free-text hits; programs with no hits are omitted.
func RecommendPrograms(topic string, limit int) []Program {
	if limit <= 0 {
		limit = 3
	}

	terms := strings.Fields(strings.ToLower(topic))
	if len(terms) == 0 {
		return nil
	}

	type scored struct {
		program Program
		score   int
	}

	matches := []scored{}
	for _, program := range programCatalog {
		haystack := strings.ToLower(program.Title + " " + program.Category + " " + program.Description)
		score := 0
		for _, term := range terms {
			for _, keyword := range program.Keywords {
				if strings.Contains(keyword, term) {
					score += 2
				}
			}
			if strings.Contains(haystack, term) {
				score++
			}
		}
		if score > 0 {
			matches = append(matches, scored{program: program, score: score})
		}
	}

	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].score > matches[b].score
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}

	programs := make([]Program, len(matches))
	for i, match := range matches {
		programs[i] = match.program
	}
	return programs
}

type programQuery struct {
	Topic string `json:"topic" jsonschema:"description=Topic or goal to recommend programs for"`
	Limit int    `json:"limit,omitempty" jsonschema:"description=Maximum number of recommendations,default=3"`
}

// ProgramTools returns the built-in catalog tools exposed to the agent.
func ProgramTools() []Tool {
	return []Tool{
		NewTool("get_program_recommendations",
			"Recommends learning programs from the catalog matching a topic or goal.",
			func(query programQuery) (string, error) {
				programs := RecommendPrograms(query.Topic, query.Limit)
				if len(programs) == 0 {
					return fmt.Sprintf("No programs in the catalog match %q.", query.Topic), nil
				}

				var builder strings.Builder
				fmt.Fprintf(&builder, "Found %d matching programs:\n", len(programs))
				for _, program := range programs {
					fmt.Fprintf(&builder, "- %s by %s (%s): %s\n",
						program.Title, program.Author, program.Category, program.Description)
				}
				return builder.String(), nil
			}),
		NewTool("get_conversation_suggestions",
			"Suggests questions the user could explore next.",
			func(struct{}) (string, error) {
				return "Here are some questions to explore:\n- " +
					strings.Join(conversationSuggestions, "\n- "), nil
			}),
	}
}
