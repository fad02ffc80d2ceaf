package query

// TenantField is the persisted field scoping every record to one user.
const TenantField = "userId"

// InjectTenant guarantees the payload is scoped to the supplied tenant id.
//
// For a Filter the constraint is merged at the top level; for a Pipeline it
// is merged into the first $match stage, creating one at the head of the
// sequence if none exists. The injected value always wins over anything the
// generator produced: the caller-supplied tenant id is authoritative and the
// generator's view of identity must never override it.
//
// This is the final safety gate. It must run after placeholder resolution and
// range injection, and nothing downstream may strip the constraint. For any
// input payload, well-formed or adversarially shaped, the returned payload
// carries the supplied tenant id.
func InjectTenant(p *Payload, tenantID string) *Payload {
	result := p.Clone()

	switch result.Shape {
	case ShapePipeline:
		for _, stage := range result.Pipeline {
			if match, ok := stage["$match"].(map[string]interface{}); ok {
				match[TenantField] = tenantID
				return result
			}
		}
		head := Stage{"$match": map[string]interface{}{TenantField: tenantID}}
		result.Pipeline = append([]Stage{head}, result.Pipeline...)

	default:
		if result.Filter == nil {
			result.Filter = Filter{}
		}
		result.Filter[TenantField] = tenantID
	}

	return result
}
