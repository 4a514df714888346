package telephony

import (
	"fmt"
	"strings"
)

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// ConnectStreamTwiML returns the voice-webhook response that connects an
// inbound call to the media-stream WebSocket endpoint. The caller's number
// and call sid travel as custom stream parameters so the stream start event
// can identify the call.
func ConnectStreamTwiML(host, callSID, caller string) string {
	wsURL := fmt.Sprintf("wss://%s/voice/media", host)
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Response>
    <Connect>
        <Stream url="%s">
            <Parameter name="callSid" value="%s"/>
            <Parameter name="caller" value="%s"/>
        </Stream>
    </Connect>
</Response>`, wsURL, xmlEscaper.Replace(callSID), xmlEscaper.Replace(caller))
}
