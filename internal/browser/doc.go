// Package browser wraps the platform the reaper manages tabs on.
//
// types.go defines the normalized Tab/Window model and the Client
// interface; everything above this package works against those.
//
// devtools.go implements Client over a browser's DevTools HTTP endpoint
// (/json/list, /json/close). It assigns session-local numeric tab ids in
// discovery order — ids are deliberately unstable across restarts, which
// is the instability the reaper's startup migration reconciles by URL.
//
// events.go streams Target.* lifecycle notifications over the DevTools
// websocket (gorilla) and translates them into Created/Activated/Updated/
// Removed events, reconnecting with jittered exponential backoff.
package browser
