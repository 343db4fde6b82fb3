// Package events defines the typed event contract emitted by the pipeline.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - user_input.*
//   - assistant_response.*
//   - pipeline.*
//
// user_input events
//
//   - Transcription (user_input.transcription): a transcription result,
//     interim or final, tagged with the originating speaker identity.
//
// assistant_response events
//
//   - Sentence (assistant_response.sentence): one speakable sentence
//     completed and handed to playback.
//   - Response (assistant_response.final): the full response text for a
//     completed turn, with any synthesis markup stripped.
//
// pipeline events
//
//   - AgentStateChanged (pipeline.state): the agent-visible state machine
//     moved; emitted on transitions only.
//   - PipelineError (pipeline.error): an unexpected failure that did not
//     stop the pipeline; the next turn may still proceed.
package events
