package geo

import "math"

// WGS-84 ellipsoid parameters.
const (
	semiMajorAxis = 6378137.0
	flattening    = 1 / 298.257223563

	// Mean Earth radius for the spherical fallbacks.
	earthRadius = 6371000.0

	vincentyTolerance = 1e-12
	vincentyMaxIter   = 100
)

// Distance returns the geodesic distance in meters between two in-range
// coordinates. Vincenty's inverse formula on the WGS-84 ellipsoid is the
// primary algorithm; when it fails to converge (nearly antipodal points)
// or yields a non-finite value, the fallbacks apply in strict order:
// Haversine first, then the equirectangular approximation. The result is
// always finite and non-negative.
func Distance(a, b Coordinate) float64 {
	if d, ok := vincenty(a, b); ok && isUsable(d) {
		return d
	}
	if d := haversine(a, b); isUsable(d) {
		return d
	}
	if d := equirectangular(a, b); isUsable(d) {
		return d
	}
	return 0
}

func isUsable(d float64) bool {
	return !math.IsNaN(d) && !math.IsInf(d, 0) && d >= 0
}

// vincenty iterates the reduced-latitude/lambda system to convergence.
// The bool result is false when the iteration cap is hit.
func vincenty(p1, p2 Coordinate) (float64, bool) {
	b := semiMajorAxis * (1 - flattening)

	l := radians(p2.Longitude - p1.Longitude)
	u1 := math.Atan((1 - flattening) * math.Tan(radians(p1.Latitude)))
	u2 := math.Atan((1 - flattening) * math.Tan(radians(p2.Latitude)))
	sinU1, cosU1 := math.Sincos(u1)
	sinU2, cosU2 := math.Sincos(u2)

	lambda := l
	var sinSigma, cosSigma, sigma, cosSqAlpha, cos2SigmaM float64
	for i := 0; ; i++ {
		if i >= vincentyMaxIter {
			return 0, false
		}
		sinLambda, cosLambda := math.Sincos(lambda)
		sinSigma = math.Sqrt(
			(cosU2*sinLambda)*(cosU2*sinLambda) +
				(cosU1*sinU2-sinU1*cosU2*cosLambda)*(cosU1*sinU2-sinU1*cosU2*cosLambda))
		if sinSigma == 0 {
			// Coincident points.
			return 0, true
		}
		cosSigma = sinU1*sinU2 + cosU1*cosU2*cosLambda
		sigma = math.Atan2(sinSigma, cosSigma)
		sinAlpha := cosU1 * cosU2 * sinLambda / sinSigma
		cosSqAlpha = 1 - sinAlpha*sinAlpha
		cos2SigmaM = cosSigma - 2*sinU1*sinU2/cosSqAlpha
		if math.IsNaN(cos2SigmaM) {
			// Both points on the equator.
			cos2SigmaM = 0
		}
		c := flattening / 16 * cosSqAlpha * (4 + flattening*(4-3*cosSqAlpha))
		prev := lambda
		lambda = l + (1-c)*flattening*sinAlpha*
			(sigma+c*sinSigma*(cos2SigmaM+c*cosSigma*(-1+2*cos2SigmaM*cos2SigmaM)))
		if math.Abs(lambda-prev) <= vincentyTolerance {
			break
		}
	}

	uSq := cosSqAlpha * (semiMajorAxis*semiMajorAxis - b*b) / (b * b)
	bigA := 1 + uSq/16384*(4096+uSq*(-768+uSq*(320-175*uSq)))
	bigB := uSq / 1024 * (256 + uSq*(-128+uSq*(74-47*uSq)))
	deltaSigma := bigB * sinSigma * (cos2SigmaM + bigB/4*
		(cosSigma*(-1+2*cos2SigmaM*cos2SigmaM)-
			bigB/6*cos2SigmaM*(-3+4*sinSigma*sinSigma)*(-3+4*cos2SigmaM*cos2SigmaM)))

	return b * bigA * (sigma - deltaSigma), true
}

// haversine computes the great-circle distance on a spherical Earth.
func haversine(p1, p2 Coordinate) float64 {
	lat1 := radians(p1.Latitude)
	lat2 := radians(p2.Latitude)
	dLat := radians(p2.Latitude - p1.Latitude)
	dLon := radians(p2.Longitude - p1.Longitude)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadius * c
}

// equirectangular is a flat-Earth approximation, adequate only for very
// short distances. Last resort in the fallback chain.
func equirectangular(p1, p2 Coordinate) float64 {
	x := radians(p2.Longitude-p1.Longitude) * math.Cos(radians(p1.Latitude+p2.Latitude)/2)
	y := radians(p2.Latitude - p1.Latitude)
	return earthRadius * math.Sqrt(x*x+y*y)
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
