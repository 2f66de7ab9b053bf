package cli

var RunChatLoop = runChatLoop
