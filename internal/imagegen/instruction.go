package imagegen

// Instruction is sent with every upload. It is not user-editable.
const Instruction = "Convert this photo into a black-and-white coloring page. " +
	"Trace the existing subjects literally as clean, continuous black outlines on a pure white background. " +
	"Keep the original composition, proportions and every recognizable shape. " +
	"Do not add, remove or invent objects, text, borders or decorations. " +
	"No shading, no gray fills, no color, no hatching: only closed line art that a child can color in."
