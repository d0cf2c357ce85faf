// Package viz renders robot descriptions in the terminal.
//
//   - [RenderTree]: the body hierarchy with joint and geom annotations
//   - [RenderSkeleton]: a Braille projection of the body frames
//   - [RunBrowser]: an interactive Bubble Tea browser over the bodies
//
// # Key Bindings
//
//	j/k   - Move between bodies
//	h/l   - Orbit the skeleton view
//	+/-   - Zoom the skeleton view
//	T     - Cycle color themes
//	q     - Quit
package viz
