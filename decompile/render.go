package decompile

// Render produces the textual output for kind, over every function of
// the contract (spec.md §4.8's three analyzer kinds, §6's three output
// shapes).
func Render(kind Kind, fns []ContractFunction) (string, error) {
	switch kind {
	case KindABI:
		out, err := RenderABI(fns)
		if err != nil {
			return "", err
		}
		return string(out), nil
	case KindYul:
		return RenderYul(fns), nil
	default:
		return RenderSolidity(fns), nil
	}
}
