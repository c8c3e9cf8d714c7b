package catalog

// LearningResource is a static documentation pointer shown in the UI.
type LearningResource struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Type        string `json:"type"`
	Icon        string `json:"icon"`
}

//nolint:gochecknoglobals // fixed catalog data
var learningResources = []LearningResource{
	{
		ID:          "azure-ai-fundamentals",
		Title:       "Azure AI Fundamentals",
		Description: "Learn the fundamentals of artificial intelligence (AI) and how to implement AI solutions on Azure.",
		URL:         "https://docs.microsoft.com/learn/paths/get-started-with-artificial-intelligence-on-azure/",
		Type:        "Learning Path",
		Icon:        "📚",
	},
	{
		ID:          "openai-service",
		Title:       "Azure OpenAI Service",
		Description: "Explore Azure OpenAI Service and learn how to integrate powerful AI models into your applications.",
		URL:         "https://docs.microsoft.com/azure/cognitive-services/openai/",
		Type:        "Documentation",
		Icon:        "🔧",
	},
}

// LearningResources returns the static resource list.
func LearningResources() []LearningResource {
	out := make([]LearningResource, len(learningResources))
	copy(out, learningResources)
	return out
}
