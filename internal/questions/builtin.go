package questions

// BuiltinSet returns a small general-knowledge pool for running without a
// question service. The static provider cycles it to fill a match.
func BuiltinSet() []Question {
	return []Question{
		{
			Prompt:       "What is 7 × 8?",
			Options:      []string{"54", "56", "58", "64"},
			CorrectIndex: 1,
		},
		{
			Prompt:       "Which planet is closest to the sun?",
			Options:      []string{"Venus", "Earth", "Mercury", "Mars"},
			CorrectIndex: 2,
		},
		{
			Prompt:       "What is the chemical symbol for gold?",
			Options:      []string{"Ag", "Au", "Gd", "Go"},
			CorrectIndex: 1,
		},
		{
			Prompt:       "In which year did World War II end?",
			Options:      []string{"1943", "1944", "1945", "1946"},
			CorrectIndex: 2,
		},
		{
			Prompt:       "What is the capital of Australia?",
			Options:      []string{"Sydney", "Melbourne", "Canberra", "Perth"},
			CorrectIndex: 2,
		},
		{
			Prompt:       "How many sides does a hexagon have?",
			Options:      []string{"5", "6", "7", "8"},
			CorrectIndex: 1,
		},
		{
			Prompt:       "Which gas do plants absorb from the atmosphere?",
			Options:      []string{"Oxygen", "Nitrogen", "Carbon dioxide", "Hydrogen"},
			CorrectIndex: 2,
		},
		{
			Prompt:       "Who painted the Mona Lisa?",
			Options:      []string{"Michelangelo", "Leonardo da Vinci", "Raphael", "Donatello"},
			CorrectIndex: 1,
		},
		{
			Prompt:       "What is the largest ocean on Earth?",
			Options:      []string{"Atlantic", "Indian", "Arctic", "Pacific"},
			CorrectIndex: 3,
		},
		{
			Prompt:       "What is the square root of 144?",
			Options:      []string{"11", "12", "13", "14"},
			CorrectIndex: 1,
		},
		{
			Prompt:       "Which language has the most native speakers?",
			Options:      []string{"English", "Hindi", "Mandarin Chinese", "Spanish"},
			CorrectIndex: 2,
		},
		{
			Prompt:       "At what temperature does water boil at sea level?",
			Options:      []string{"90°C", "95°C", "100°C", "110°C"},
			CorrectIndex: 2,
		},
	}
}
