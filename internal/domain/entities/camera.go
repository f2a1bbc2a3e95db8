package entities

// CameraState is the camera snapshot the renderer attaches to camera-changed
// and camera-idle events. The engine only reads it for logging and for the
// viewport size; the actual visibility decision goes through pixel→coordinate
// sampling, never through the camera's reported center/zoom (which is exactly
// the jittery signal the sampling approach avoids trusting).
type CameraState struct {
	Center Coordinate `json:"center"`
	Zoom   float64    `json:"zoom"`
}

// ViewportSize is the logical (pre-overscan) size of the clipped map view in
// pixels. Both dimensions must be positive for the viewport polygon to be
// resolvable.
type ViewportSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Valid reports whether the size can be used for corner sampling.
func (s ViewportSize) Valid() bool {
	return s.Width > 0 && s.Height > 0
}
