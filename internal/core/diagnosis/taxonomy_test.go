package diagnosis

import "testing"

func TestParseLabelPlantVillage(t *testing.T) {
	cases := []struct {
		raw     string
		crop    string
		disease string
	}{
		{raw: "Tomato___Late_blight", crop: "Tomato", disease: "Late Blight"},
		{raw: "Apple___Cedar_apple_rust", crop: "Apple", disease: "Cedar Apple Rust"},
		{raw: "Corn_(maize)___Common_rust_", crop: "Maize", disease: "Common Rust"},
		{raw: "Corn_(maize)___Cercospora_leaf_spot Gray_leaf_spot", crop: "Maize", disease: "Cercospora Leaf Spot Gray Leaf Spot"},
		{raw: "Cherry_(including_sour)___Powdery_mildew", crop: "Cherry", disease: "Powdery Mildew"},
		{raw: "Pepper,_bell___Bacterial_spot", crop: "Bell Pepper", disease: "Bacterial Spot"},
		{raw: "Grape___Esca_(Black_Measles)", crop: "Grape", disease: "Esca (Black Measles)"},
		{raw: "Tomato___Spider_mites Two-spotted_spider_mite", crop: "Tomato", disease: "Spider Mites Two-Spotted Spider Mite"},
		{raw: "Potato___healthy", crop: "Potato", disease: "Healthy"},
	}

	for _, tc := range cases {
		crop, disease := ParseLabel(tc.raw)
		if crop != tc.crop || disease != tc.disease {
			t.Fatalf("ParseLabel(%q) = (%q, %q), expected (%q, %q)", tc.raw, crop, disease, tc.crop, tc.disease)
		}
	}
}

func TestParseLabelWithoutSeparator(t *testing.T) {
	cases := []struct {
		raw     string
		crop    string
		disease string
	}{
		{raw: "Strawberry_healthy", crop: "Strawberry", disease: "Healthy"},
		{raw: "HEALTHY", crop: "Plant", disease: "Healthy"},
		{raw: "corn_(maize)_healthy", crop: "Maize", disease: "Healthy"},
		{raw: "leaf_curl", crop: "Plant", disease: "leaf_curl"},
		{raw: "", crop: "Plant", disease: ""},
	}

	for _, tc := range cases {
		crop, disease := ParseLabel(tc.raw)
		if crop != tc.crop || disease != tc.disease {
			t.Fatalf("ParseLabel(%q) = (%q, %q), expected (%q, %q)", tc.raw, crop, disease, tc.crop, tc.disease)
		}
	}
}

func TestTaxonomyCustomAliases(t *testing.T) {
	taxonomy := NewTaxonomy(map[string]string{"bell_pepper": "Capsicum"})

	crop, disease := taxonomy.Parse("Bell_Pepper___Bacterial_spot")
	if crop != "Capsicum" || disease != "Bacterial Spot" {
		t.Fatalf("unexpected parse result: (%q, %q)", crop, disease)
	}

	crop, _ = taxonomy.Parse("Corn_(maize)___Common_rust_")
	if crop != "Corn (Maize)" {
		t.Fatalf("expected default aliases to be replaced, got %q", crop)
	}
}
