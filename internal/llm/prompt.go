package llm

// PromptVersion identifies the measurement prompt and its answer schema.
const PromptVersion = "1.0"

const measurementPrompt = `You are measuring the visual style of one pair of glasses shown in a product photo.
Judge only what is visible. Do not guess the brand or physical size.

Score each dimension from -5.0 to 5.0 and give a confidence from 0.0 to 1.0:
- gender_expression: -5 strongly masculine, 0 neutral, 5 strongly feminine
- visual_weight: -5 very light and delicate, 5 very heavy and bold
- embellishment: -5 completely plain, 5 heavily decorated (studs, patterns, logos)
- unconventionality: -5 classic and conservative, 5 avant-garde or unusual
- formality: -5 very casual or sporty, 5 very formal or business

If a dimension is ambiguous, use score 0.0 with confidence 0.3.

Also report these observable attributes, each with a confidence from 0.0 to 1.0:
- wirecore_visible: {"detected": true|false, "confidence": c}
- frame_geometry: {"value": one of rectangular, round, oval, aviator, cat-eye, geometric, irregular, unknown, "confidence": c}
- transparency: {"value": one of opaque, semi-transparent, transparent, mixed, "confidence": c}
- surface_texture: {"value": one of smooth, matte, glossy, textured, patterned, metallic, "confidence": c}
- suitable_for_kids: {"assessment": true|false, "confidence": c}
- dominant_colors: at most 3 entries, largest coverage first:
  [{"color": name, "hex_approximation": "#RRGGBB", "coverage_percentage": 0-100}]

And these metadata values without confidence:
- frame_material_apparent: one of metal, plastic, acetate, titanium, wood, mixed, indeterminate
- lens_tint: one of clear, tinted, gradient, mirrored, photochromic, gray, brown, green, blue, indeterminate
- has_nose_pads: true or false
- temple_style: one of standard, spring-hinge, cable, skull, indeterminate

Example response:
{"gender_expression": {"score": 1.5, "confidence": 0.7}, "visual_weight": {"score": -2.0, "confidence": 0.8}, "embellishment": {"score": -3.0, "confidence": 0.9}, "unconventionality": {"score": 0.5, "confidence": 0.6}, "formality": {"score": 2.0, "confidence": 0.7}, "wirecore_visible": {"detected": false, "confidence": 0.8}, "frame_geometry": {"value": "round", "confidence": 0.9}, "transparency": {"value": "opaque", "confidence": 0.9}, "surface_texture": {"value": "glossy", "confidence": 0.7}, "suitable_for_kids": {"assessment": false, "confidence": 0.6}, "dominant_colors": [{"color": "tortoise brown", "hex_approximation": "#8B4513", "coverage_percentage": 70}, {"color": "gold", "hex_approximation": "#D4AF37", "coverage_percentage": 20}], "frame_material_apparent": "acetate", "lens_tint": "clear", "has_nose_pads": false, "temple_style": "standard"}

Respond ONLY with the JSON object, no markdown or other text.`
