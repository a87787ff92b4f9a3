// Package notebook adapts the audio-synthesis provider.
//
// Remote is the narrow provider interface and HTTPRemote its JSON-over-HTTP
// implementation, authenticated with a captured browser StorageState. Client
// wraps one Remote for the duration of a generation run and owns the bounded
// waits: WaitForSourcesReady gives up quietly and lets generation proceed with
// what is ready, while WaitForCompletion reports a timeout outcome that the
// caller treats as fatal.
package notebook
