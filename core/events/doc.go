// Package events defines the typed agent-session event contract.
//
// Every payload the remote agent emits is validated at the transport
// boundary and converted into one of the variants below before it reaches
// the session engine. Event kinds are grouped by receiver-facing
// namespaces:
//
//   - connection.*
//   - assistant_text.*
//   - message.*
//   - tool_call.*
//   - session.*
//
// connection events
//
//   - ConnectionConnecting (connection.connecting): handshake in progress.
//   - ConnectionConnected (connection.connected): session is live.
//   - ConnectionDisconnected (connection.disconnected): session ended,
//     locally or remotely.
//
// assistant_text events
//
//   - AssistantTextStarted (assistant_text.started): the agent began
//     streaming a reply; the engine opens a new assistant message.
//   - AssistantTextDelta (assistant_text.delta): append-only text fragment
//     for the currently open assistant message.
//   - AssistantTextStopped (assistant_text.stopped): the delta stream
//     ended; the authoritative final text arrives as a MessageFinal.
//
// message events
//
//   - MessageFinal (message.final): an authoritative, immutable message
//     from either source. For the agent source it closes the open
//     streaming message; for the user source it is the echoed transcript
//     or text submission.
//
// tool_call events
//
//   - ToolCallStarted (tool_call.started): tool execution started.
//   - ToolCallCompleted (tool_call.completed): tool execution completed.
//   - ToolCallFailed (tool_call.failed): tool execution failed.
//
// session events
//
//   - SessionErrorReported (session.error_reported): the remote side
//     reported a fatal condition without closing the session. The engine
//     surfaces it and leaves the session connected.
package events
