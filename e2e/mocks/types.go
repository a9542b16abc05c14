package mocks

// Company is the fixture a mock vendor serves for one symbol.
type Company struct {
	Symbol        string
	Name          string
	Sector        string
	Industry      string
	Price         float64
	PreviousClose float64
	PERatio       float64
	PriceToBook   float64
	EPS           float64
	BookValue     float64
	DividendYield float64
	ROE           float64
	ProfitMargin  float64
	RSI           float64
	// Closes are daily closes, oldest first, ending yesterday
	Closes    []float64
	Sentiment float64
}

// Professional is the JSON body the mock LLM returns as its message content.
type Professional struct {
	Summary   string   `json:"summary"`
	Outlook   string   `json:"outlook"`
	Catalysts []string `json:"catalysts"`
	KeyRisks  []string `json:"key_risks"`
}

// TelegramMessage is a sendMessage call received by the mock bot API.
type TelegramMessage struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type chatCompletion struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
