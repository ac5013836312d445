package codec

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/artpar/reportgate/domain/report"
)

// hl7Escape protects the HL7 separator characters inside a field value.
var hl7Escape = strings.NewReplacer(
	`\`, `\E\`,
	"|", `\F\`,
	"^", `\S\`,
	"&", `\T\`,
	"~", `\R\`,
)

// writeHL7 renders one ORU^R01 message per item: an MSH segment carrying
// the report id as the message control id, followed by one OBX segment per
// non-blank element in schema order. Receivers needing a richer segment
// layout consume the CSV rendering instead.
func writeHL7(r *report.Report) ([]byte, error) {
	var buf bytes.Buffer
	for i, item := range r.Items {
		controlID := r.ID.String()
		if len(r.Items) > 1 {
			controlID = fmt.Sprintf("%s-%d", r.ID, i+1)
		}
		fmt.Fprintf(&buf, "MSH|^~\\&|reportgate|%s|||%s||ORU^R01^ORU_R01|%s|P|2.5.1\r",
			hl7Escape.Replace(r.Schema.Topic),
			r.CreatedAt.UTC().Format("20060102150405"),
			controlID)

		seq := 0
		for j := range r.Schema.Elements {
			name := r.Schema.Elements[j].Name
			value := item[name]
			if value == "" {
				continue
			}
			seq++
			fmt.Fprintf(&buf, "OBX|%d|ST|%s||%s||||||F\r",
				seq, hl7Escape.Replace(name), hl7Escape.Replace(value))
		}
	}
	return buf.Bytes(), nil
}
