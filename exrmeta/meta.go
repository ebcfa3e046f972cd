// Package exrmeta provides typed accessors for standard OpenEXR metadata
// attributes.
//
// Setters take the attribute list to modify, getters the list to read.
// Image level attributes such as owner and framesPerSecond live in
// exr.Image.Attributes; the others belong to a layer:
//
//	img := exr.NewImage(layer)
//	exrmeta.SetOwner(&img.Attributes, "Studio XYZ")
//	exrmeta.SetFramesPerSecond(&img.Attributes, exrmeta.FPS24)
//	exrmeta.SetISOSpeed(&layer.Attributes, 800)
package exrmeta

import (
	"math"
	"strings"

	"github.com/fursund/exrs/exr"
)

// Standard attribute names
const (
	// Production metadata
	AttrOwner           = "owner"
	AttrComments        = "comments"
	AttrCapDate         = "capDate"
	AttrUTCOffset       = "utcOffset"
	AttrFramesPerSecond = "framesPerSecond"
	AttrTimeCode        = "timeCode"
	AttrReelName        = "reelName"
	AttrImageCounter    = "imageCounter"

	// Environment/texture
	AttrEnvMap    = "envmap"
	AttrWrapModes = "wrapmodes"

	// Stereo and multi-view
	AttrMultiView = "multiView"
	AttrView      = "view"

	// Camera properties
	AttrAperture     = "aperture"
	AttrFocus        = "focus"
	AttrISOSpeed     = "isoSpeed"
	AttrExpTime      = "expTime"
	AttrShutterAngle = "shutterAngle"
	AttrTStop        = "tStop"

	// Lens properties
	AttrNominalFocalLength   = "nominalFocalLength"
	AttrEffectiveFocalLength = "effectiveFocalLength"
	AttrPinholeFocalLength   = "pinholeFocalLength"

	// Camera and lens identification
	AttrCameraMake         = "cameraMake"
	AttrCameraModel        = "cameraModel"
	AttrCameraSerialNumber = "cameraSerialNumber"
	AttrLensMake           = "lensMake"
	AttrLensModel          = "lensModel"

	// Geolocation
	AttrLongitude = "longitude"
	AttrLatitude  = "latitude"
	AttrAltitude  = "altitude"

	// Display/color
	AttrWhiteLuminance = "whiteLuminance"
	AttrXDensity       = "xDensity"
	AttrAdoptedNeutral = "adoptedNeutral"
	AttrChromaticities = "chromaticities"

	// 3D transforms
	AttrWorldToCamera = "worldToCamera"
	AttrWorldToNDC    = "worldToNDC"
)

func put(a *exr.Attributes, name string, typ exr.AttributeType, v any) {
	a.Put(exr.Attribute{Name: name, Type: typ, Value: v})
}

// get returns the named value if it is present with the Go type T.
func get[T any](a exr.Attributes, name string) (T, bool) {
	v, ok := a.Value(name).(T)
	return v, ok
}

// value is get without the presence flag.
func value[T any](a exr.Attributes, name string) T {
	v, _ := get[T](a, name)
	return v
}

// ===========================================
// Environment Maps
// ===========================================

// SetEnvMap marks a layer as an environment map.
func SetEnvMap(a *exr.Attributes, e exr.EnvMap) {
	put(a, AttrEnvMap, exr.AttrTypeEnvmap, e)
}

// EnvMap returns the environment map type and whether it is set.
func EnvMap(a exr.Attributes) (exr.EnvMap, bool) {
	return get[exr.EnvMap](a, AttrEnvMap)
}

// WrapMode specifies texture wrapping behavior.
type WrapMode uint8

const (
	WrapClamp  WrapMode = 0 // Clamp to edge
	WrapRepeat WrapMode = 1 // Tile/repeat
	WrapBlack  WrapMode = 2 // Black outside bounds
	WrapMirror WrapMode = 3 // Mirror at edges
)

var wrapModeNames = [...]string{"clamp", "periodic", "black", "mirror"}

// WrapModes specifies horizontal and vertical wrap modes.
type WrapModes struct {
	Horizontal WrapMode
	Vertical   WrapMode
}

// SetWrapModes stores w as "horizontal,vertical".
func SetWrapModes(a *exr.Attributes, w WrapModes) {
	put(a, AttrWrapModes, exr.AttrTypeString,
		wrapModeNames[w.Horizontal&3]+","+wrapModeNames[w.Vertical&3])
}

// GetWrapModes returns the texture wrap modes, or nil if they are missing
// or malformed.
func GetWrapModes(a exr.Attributes) *WrapModes {
	s, ok := get[string](a, AttrWrapModes)
	if !ok {
		return nil
	}
	h, v, ok := strings.Cut(s, ",")
	if !ok {
		return nil
	}
	hMode, hOK := parseWrapMode(h)
	vMode, vOK := parseWrapMode(v)
	if !hOK || !vOK {
		return nil
	}
	return &WrapModes{Horizontal: hMode, Vertical: vMode}
}

func parseWrapMode(s string) (WrapMode, bool) {
	for i, name := range wrapModeNames {
		if s == name {
			return WrapMode(i), true
		}
	}
	return 0, false
}

// ===========================================
// Production Metadata
// ===========================================

// SetOwner sets the file owner/creator.
func SetOwner(a *exr.Attributes, owner string) {
	put(a, AttrOwner, exr.AttrTypeString, owner)
}

// Owner returns the file owner/creator, or empty string if not set.
func Owner(a exr.Attributes) string { return value[string](a, AttrOwner) }

// SetComments sets the file comments.
func SetComments(a *exr.Attributes, comments string) {
	put(a, AttrComments, exr.AttrTypeString, comments)
}

// Comments returns the file comments, or empty string if not set.
func Comments(a exr.Attributes) string { return value[string](a, AttrComments) }

// SetCapDate sets the capture date, formatted "YYYY:MM:DD hh:mm:ss".
func SetCapDate(a *exr.Attributes, date string) {
	put(a, AttrCapDate, exr.AttrTypeString, date)
}

func CapDate(a exr.Attributes) string { return value[string](a, AttrCapDate) }

// SetUTCOffset sets the offset of capDate from UTC in seconds.
func SetUTCOffset(a *exr.Attributes, seconds float32) {
	put(a, AttrUTCOffset, exr.AttrTypeFloat, seconds)
}

func UTCOffset(a exr.Attributes) float32 { return value[float32](a, AttrUTCOffset) }

// SetFramesPerSecond sets the frame rate.
func SetFramesPerSecond(a *exr.Attributes, r exr.Rational) {
	put(a, AttrFramesPerSecond, exr.AttrTypeRational, r)
}

// FramesPerSecond returns the frame rate, or nil if not set.
func FramesPerSecond(a exr.Attributes) *exr.Rational {
	if r, ok := get[exr.Rational](a, AttrFramesPerSecond); ok {
		return &r
	}
	return nil
}

// SetTimeCode sets the SMPTE time code of the frame.
func SetTimeCode(a *exr.Attributes, tc exr.TimeCode) {
	put(a, AttrTimeCode, exr.AttrTypeTimecode, tc)
}

// TimeCode returns the time code and whether it is set.
func TimeCode(a exr.Attributes) (exr.TimeCode, bool) {
	return get[exr.TimeCode](a, AttrTimeCode)
}

// TimeCodeFields are the unpacked hours, minutes, seconds and frame of a
// time code.
type TimeCodeFields struct {
	Hours, Minutes, Seconds, Frame int
	DropFrame                      bool
}

// bcd decodes a two digit binary coded decimal stored at shift.
func bcd(v uint32, shift, tensBits uint) int {
	units := int(v>>shift) & 0xF
	tens := int(v>>(shift+4)) & (1<<tensBits - 1)
	return tens*10 + units
}

func toBCD(n int, shift uint) uint32 {
	return uint32(n/10%10)<<(shift+4) | uint32(n%10)<<shift
}

// DecodeTimeCode unpacks the time fields of tc.
func DecodeTimeCode(tc exr.TimeCode) TimeCodeFields {
	v := tc.TimeAndFlags
	return TimeCodeFields{
		Frame:     bcd(v, 0, 2),
		DropFrame: v&(1<<6) != 0,
		Seconds:   bcd(v, 8, 3),
		Minutes:   bcd(v, 16, 3),
		Hours:     bcd(v, 24, 2),
	}
}

// EncodeTimeCode packs f into a time code with no user data.
func EncodeTimeCode(f TimeCodeFields) exr.TimeCode {
	v := toBCD(f.Frame, 0) | toBCD(f.Seconds, 8) | toBCD(f.Minutes, 16) | toBCD(f.Hours, 24)
	if f.DropFrame {
		v |= 1 << 6
	}
	return exr.TimeCode{TimeAndFlags: v}
}

// ===========================================
// Standard Frame Rates
// ===========================================

// Standard frame rates as Rational values.
var (
	// Film frame rates
	FPS24    = exr.Rational{Num: 24, Denom: 1}       // 24 fps - Standard cinema
	FPS23976 = exr.Rational{Num: 24000, Denom: 1001} // 23.976 fps - NTSC film pulldown
	FPS48    = exr.Rational{Num: 48, Denom: 1}

	// PAL frame rates
	FPS25 = exr.Rational{Num: 25, Denom: 1}
	FPS50 = exr.Rational{Num: 50, Denom: 1}

	// NTSC frame rates
	FPS2997 = exr.Rational{Num: 30000, Denom: 1001} // 29.97 fps - NTSC standard
	FPS30   = exr.Rational{Num: 30, Denom: 1}
	FPS5994 = exr.Rational{Num: 60000, Denom: 1001}

	FPS60  = exr.Rational{Num: 60, Denom: 1}
	FPS120 = exr.Rational{Num: 120, Denom: 1}
)

var commonRates = []exr.Rational{
	FPS24, FPS23976, FPS25, FPS2997, FPS30,
	FPS48, FPS50, FPS5994, FPS60, FPS120,
}

// RationalToFloat converts a Rational to a float64. A zero denominator
// yields 0.
func RationalToFloat(r exr.Rational) float64 {
	if r.Denom == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Denom)
}

// FloatToRational finds a rational approximation of f with a denominator
// of at most maxDenom (1001 when maxDenom <= 0). Standard frame rates are
// matched exactly.
func FloatToRational(f float64, maxDenom int32) exr.Rational {
	if maxDenom <= 0 {
		maxDenom = 1001
	}
	if f <= 0 || math.IsNaN(f) {
		return exr.Rational{Num: 0, Denom: 1}
	}
	for _, r := range commonRates {
		if math.Abs(f-RationalToFloat(r)) < 0.0001 {
			return r
		}
	}
	return continuedFraction(f, maxDenom)
}

// IsDropFrame reports whether r is one of the NTSC rates 23.976, 29.97 or
// 59.94.
func IsDropFrame(r exr.Rational) bool {
	return r.Denom == 1001 && (r.Num == 24000 || r.Num == 30000 || r.Num == 60000)
}

// FrameRateName returns a human-readable name for common frame rates, or
// an empty string.
func FrameRateName(r exr.Rational) string {
	switch r {
	case FPS24:
		return "24 fps (Cinema)"
	case FPS23976:
		return "23.976 fps (NTSC Film)"
	case FPS25:
		return "25 fps (PAL)"
	case FPS2997:
		return "29.97 fps (NTSC)"
	case FPS30:
		return "30 fps"
	case FPS48:
		return "48 fps (HFR Cinema)"
	case FPS50:
		return "50 fps (PAL HFR)"
	case FPS5994:
		return "59.94 fps (NTSC HFR)"
	case FPS60:
		return "60 fps"
	case FPS120:
		return "120 fps"
	}
	return ""
}

func continuedFraction(f float64, maxDenom int32) exr.Rational {
	if f > math.MaxInt32 {
		return exr.Rational{Num: math.MaxInt32, Denom: 1}
	}
	var (
		n0, n1 int64 = 0, 1
		d0, d1 int64 = 1, 0
	)
	x := f
	for i := 0; i < 20; i++ {
		a := int64(x)
		n := a*n1 + n0
		d := a*d1 + d0
		if d > int64(maxDenom) || n > math.MaxInt32 {
			break
		}
		n0, n1 = n1, n
		d0, d1 = d1, d
		frac := x - float64(a)
		if frac < 1e-10 {
			break
		}
		x = 1 / frac
	}
	if d1 == 0 {
		return exr.Rational{Num: int32(min(int64(f), math.MaxInt32)), Denom: 1}
	}
	return exr.Rational{Num: int32(n1), Denom: uint32(d1)}
}

// SetReelName sets the film reel name.
func SetReelName(a *exr.Attributes, name string) {
	put(a, AttrReelName, exr.AttrTypeString, name)
}

func ReelName(a exr.Attributes) string { return value[string](a, AttrReelName) }

// SetImageCounter sets the frame counter, stored as an int.
func SetImageCounter(a *exr.Attributes, counter int32) {
	put(a, AttrImageCounter, exr.AttrTypeInt, counter)
}

func ImageCounter(a exr.Attributes) (int32, bool) { return get[int32](a, AttrImageCounter) }

// ===========================================
// Camera and Lens
// ===========================================

func SetAperture(a *exr.Attributes, fNumber float32) { put(a, AttrAperture, exr.AttrTypeFloat, fNumber) }
func Aperture(a exr.Attributes) float32            { return value[float32](a, AttrAperture) }

// SetFocus sets the focus distance in meters.
func SetFocus(a *exr.Attributes, meters float32) { put(a, AttrFocus, exr.AttrTypeFloat, meters) }
func Focus(a exr.Attributes) float32            { return value[float32](a, AttrFocus) }

func SetISOSpeed(a *exr.Attributes, iso float32) { put(a, AttrISOSpeed, exr.AttrTypeFloat, iso) }
func ISOSpeed(a exr.Attributes) float32         { return value[float32](a, AttrISOSpeed) }

// SetExpTime sets the exposure time in seconds.
func SetExpTime(a *exr.Attributes, seconds float32) { put(a, AttrExpTime, exr.AttrTypeFloat, seconds) }
func ExpTime(a exr.Attributes) float32             { return value[float32](a, AttrExpTime) }

func SetShutterAngle(a *exr.Attributes, degrees float32) {
	put(a, AttrShutterAngle, exr.AttrTypeFloat, degrees)
}
func ShutterAngle(a exr.Attributes) float32 { return value[float32](a, AttrShutterAngle) }

func SetTStop(a *exr.Attributes, tStop float32) { put(a, AttrTStop, exr.AttrTypeFloat, tStop) }
func TStop(a exr.Attributes) float32           { return value[float32](a, AttrTStop) }

// LensInfo groups the focal lengths of a lens, in millimeters.
type LensInfo struct {
	Make                 string
	Model                string
	NominalFocalLength   float32
	EffectiveFocalLength float32
	PinholeFocalLength   float32
}

// SetLensInfo stores the non-zero fields of info.
func SetLensInfo(a *exr.Attributes, info LensInfo) {
	setString(a, AttrLensMake, info.Make)
	setString(a, AttrLensModel, info.Model)
	setFloat(a, AttrNominalFocalLength, info.NominalFocalLength)
	setFloat(a, AttrEffectiveFocalLength, info.EffectiveFocalLength)
	setFloat(a, AttrPinholeFocalLength, info.PinholeFocalLength)
}

func GetLensInfo(a exr.Attributes) LensInfo {
	return LensInfo{
		Make:                 value[string](a, AttrLensMake),
		Model:                value[string](a, AttrLensModel),
		NominalFocalLength:   value[float32](a, AttrNominalFocalLength),
		EffectiveFocalLength: value[float32](a, AttrEffectiveFocalLength),
		PinholeFocalLength:   value[float32](a, AttrPinholeFocalLength),
	}
}

// CameraInfo identifies the capturing camera.
type CameraInfo struct {
	Make         string
	Model        string
	SerialNumber string
}

// SetCameraInfo stores the non-empty fields of info.
func SetCameraInfo(a *exr.Attributes, info CameraInfo) {
	setString(a, AttrCameraMake, info.Make)
	setString(a, AttrCameraModel, info.Model)
	setString(a, AttrCameraSerialNumber, info.SerialNumber)
}

func GetCameraInfo(a exr.Attributes) CameraInfo {
	return CameraInfo{
		Make:         value[string](a, AttrCameraMake),
		Model:        value[string](a, AttrCameraModel),
		SerialNumber: value[string](a, AttrCameraSerialNumber),
	}
}

func setString(a *exr.Attributes, name, v string) {
	if v != "" {
		put(a, name, exr.AttrTypeString, v)
	}
}

func setFloat(a *exr.Attributes, name string, v float32) {
	if v != 0 {
		put(a, name, exr.AttrTypeFloat, v)
	}
}

// GeoLocation is a capture position in degrees and meters.
type GeoLocation struct {
	Longitude float32
	Latitude  float32
	Altitude  float32
}

func SetGeoLocation(a *exr.Attributes, loc GeoLocation) {
	put(a, AttrLongitude, exr.AttrTypeFloat, loc.Longitude)
	put(a, AttrLatitude, exr.AttrTypeFloat, loc.Latitude)
	put(a, AttrAltitude, exr.AttrTypeFloat, loc.Altitude)
}

// GetGeoLocation returns nil unless longitude and latitude are both set.
func GetGeoLocation(a exr.Attributes) *GeoLocation {
	lon, okLon := get[float32](a, AttrLongitude)
	lat, okLat := get[float32](a, AttrLatitude)
	if !okLon || !okLat {
		return nil
	}
	return &GeoLocation{Longitude: lon, Latitude: lat, Altitude: value[float32](a, AttrAltitude)}
}

// ===========================================
// Display and Color
// ===========================================

// SetWhiteLuminance sets the luminance in nits of RGB (1,1,1).
func SetWhiteLuminance(a *exr.Attributes, nits float32) {
	put(a, AttrWhiteLuminance, exr.AttrTypeFloat, nits)
}

func WhiteLuminance(a exr.Attributes) float32 { return value[float32](a, AttrWhiteLuminance) }

// SetXDensity sets the horizontal output density in pixels per inch.
func SetXDensity(a *exr.Attributes, ppi float32) { put(a, AttrXDensity, exr.AttrTypeFloat, ppi) }
func XDensity(a exr.Attributes) float32         { return value[float32](a, AttrXDensity) }

func SetAdoptedNeutral(a *exr.Attributes, xy exr.V2f) {
	put(a, AttrAdoptedNeutral, exr.AttrTypeV2f, xy)
}

func AdoptedNeutral(a exr.Attributes) *exr.V2f {
	if v, ok := get[exr.V2f](a, AttrAdoptedNeutral); ok {
		return &v
	}
	return nil
}

// Rec709 are the ITU-R BT.709 primaries with a D65 white point, the
// default when no chromaticities attribute is present.
var Rec709 = exr.Chromaticities{
	Red:   exr.V2f{X: 0.64, Y: 0.33},
	Green: exr.V2f{X: 0.30, Y: 0.60},
	Blue:  exr.V2f{X: 0.15, Y: 0.06},
	White: exr.V2f{X: 0.3127, Y: 0.3290},
}

func SetChromaticities(a *exr.Attributes, c exr.Chromaticities) {
	put(a, AttrChromaticities, exr.AttrTypeChromaticities, c)
}

// GetChromaticities returns the chromaticities attribute, or Rec709 when
// it is absent.
func GetChromaticities(a exr.Attributes) exr.Chromaticities {
	if c, ok := get[exr.Chromaticities](a, AttrChromaticities); ok {
		return c
	}
	return Rec709
}

func SetWorldToCamera(a *exr.Attributes, m exr.M44f) {
	put(a, AttrWorldToCamera, exr.AttrTypeM44f, m)
}

func WorldToCamera(a exr.Attributes) *exr.M44f {
	if m, ok := get[exr.M44f](a, AttrWorldToCamera); ok {
		return &m
	}
	return nil
}

func SetWorldToNDC(a *exr.Attributes, m exr.M44f) {
	put(a, AttrWorldToNDC, exr.AttrTypeM44f, m)
}

func WorldToNDC(a exr.Attributes) *exr.M44f {
	if m, ok := get[exr.M44f](a, AttrWorldToNDC); ok {
		return &m
	}
	return nil
}
