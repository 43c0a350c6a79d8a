package studio

// Language is one synthesis/translation target supported by the engine.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

var supportedLanguages = []Language{
	{Code: "en", Name: "English"},
	{Code: "es", Name: "Spanish"},
	{Code: "fr", Name: "French"},
	{Code: "de", Name: "German"},
	{Code: "it", Name: "Italian"},
	{Code: "pt", Name: "Portuguese"},
	{Code: "pl", Name: "Polish"},
	{Code: "tr", Name: "Turkish"},
	{Code: "ru", Name: "Russian"},
	{Code: "nl", Name: "Dutch"},
	{Code: "cs", Name: "Czech"},
	{Code: "ar", Name: "Arabic"},
	{Code: "zh-cn", Name: "Chinese (Simplified)"},
	{Code: "ja", Name: "Japanese"},
	{Code: "hu", Name: "Hungarian"},
	{Code: "ko", Name: "Korean"},
}

// Languages lists the supported synthesis languages.
func Languages() []Language {
	return append([]Language(nil), supportedLanguages...)
}
