package analysis

// errors.go maps technical submission failures to the fixed user-facing
// messages. The UI shows French copy; the contract is one fixed message per
// error family, with a short support code users can quote. Technical detail
// never reaches the user, only the logs.

import "errors"

// Fixed user-facing messages. These strings are part of the UI contract;
// do not vary them per failure cause.
const (
	// MsgNotCSV is shown when the chosen file does not have a .csv name.
	MsgNotCSV = "Veuillez sélectionner un fichier CSV"

	// MsgUploadFailed is shown for every submission failure, whatever the
	// underlying cause.
	MsgUploadFailed = "Erreur lors de l'analyse du fichier"
)

// UserMessage is user-facing error information with a support code.
type UserMessage struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Support codes by failure category. ANA000 is the fallback for anything
// unclassified; support staff correlate it with the logged detail.
var categoryCodes = map[Category]string{
	CategoryInvalidFile: "ANA001",
	CategoryTooLarge:    "ANA002",
	CategoryUnavailable: "ANA003",
	CategoryBadResponse: "ANA004",
}

// MapError reduces a submission failure to its fixed user message. The
// message is always MsgUploadFailed; only the support code varies with the
// failure category.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	code := "ANA000"
	var ae *Error
	if errors.As(err, &ae) {
		if c, ok := categoryCodes[ae.Category]; ok {
			code = c
		}
	}

	return UserMessage{Message: MsgUploadFailed, Code: code}
}
