package cmn

import "testing"

func TestGeoDeltaSameSite(t *testing.T) {
	a := NewGeo(35.0, -118.0, 5.0)
	if d := a.Delta(a); d > 1e-9 {
		t.Fatalf("delta to self = %v, want ~0", d)
	}
}

func TestGeoDeltaKnownSeparation(t *testing.T) {
	// one degree of latitude along the same meridian is ~1 degree of
	// great-circle arc regardless of longitude.
	a := NewGeo(0, 0, 0)
	b := NewGeo(1, 0, 0)
	d := a.Delta(b)
	if d < 0.99 || d > 1.01 {
		t.Fatalf("delta = %v, want ~1.0 degree", d)
	}
}

func TestGeoAzimuthNorth(t *testing.T) {
	a := NewGeo(0, 0, 0)
	b := NewGeo(1, 0, 0)
	az := a.Azimuth(b)
	if az < -1 || az > 1 {
		t.Fatalf("azimuth to due-north point = %v, want ~0", az)
	}
}

func TestGeoOffsetKmRoundTrip(t *testing.T) {
	anchor := NewGeo(40.0, -120.0, 10.0)
	offset := anchor.OffsetKm(50, 50, 0)
	d := anchor.DeltaKm(offset)
	// ~50km east + ~50km north implies roughly 70km great-circle distance.
	if d < 60 || d > 80 {
		t.Fatalf("offset distance = %v km, want ~70km", d)
	}
}
