// Package bridge is the boundary between callers and loaded models. Callers
// hold opaque int64 handles, stream text through a Callback, and never see a
// Go error: every failure becomes InvalidHandle, "", false, 0, or a lone
// ("", true) delivery. Two service kinds exist, a text LLM and an audio
// decoder fed with encoder embeddings; both run on engine.Engine.
//
// Freeing a handle while a call is using it is safe: the call holds its own
// reference and the model is unloaded when the last reference goes.
package bridge
