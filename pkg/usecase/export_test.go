package usecase

// IsDuplicateContent is exported for testing
var IsDuplicateContent = isDuplicateContent

// BuildChatSystemPrompt is exported for testing
var BuildChatSystemPrompt = buildChatSystemPrompt
