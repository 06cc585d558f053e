package school

// SetGenerateCode replaces the code generator until the returned func is called.
func SetGenerateCode(f func() (string, error)) (reset func()) {
	orig := generateCode
	generateCode = f
	return func() { generateCode = orig }
}
