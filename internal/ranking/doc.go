// Package ranking orders completed works by ultimate fortune and assigns
// each a color on the green-to-red gradient used by the combined fortune
// map. It runs exactly once per corpus run, after every work has reached a
// terminal state.
package ranking
